package config

import (
	"errors"
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetEngineConfig() (*EngineData, error)
	GetSessionConfig() (*SessionData, error)

	IsReadOnly() bool
	Close() error
}

// Session backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Engine    EngineData    `json:"engine"`
	Anomaly   AnomalyData   `json:"anomaly"`
	Session   SessionData   `json:"session"`
	Narrative NarrativeData `json:"narrative,omitempty"`
	REST      RESTData      `json:"rest,omitempty"`
}

// EngineData holds the alignment and join settings
type EngineData struct {
	OffsetLimit      float64       `json:"offset_limit"`
	MatchTolerance   float64       `json:"match_tolerance"`
	SettleInterval   time.Duration `json:"settle_interval"`
	SearchResolution float64       `json:"search_resolution"`
	SearchWorkers    int           `json:"search_workers,omitempty"`
}

// AnomalyData holds the segmenter settings
type AnomalyData struct {
	Threshold    float64 `json:"threshold"`
	Sensitive    bool    `json:"sensitive"`
	DetectVoids  bool    `json:"detect_voids"`
	MinVoidRows  int     `json:"min_void_rows"`
	VarianceK    float64 `json:"variance_k"`
	MedianKernel int     `json:"median_kernel"`
}

// SessionData selects where the committed offset is saved
type SessionData struct {
	Backend          string `json:"backend"`
	Path             string `json:"path,omitempty"`
	ConnectionString string `json:"connection_string,omitempty"`
	Key              string `json:"key"`
}

// NarrativeData configures the audit narrative generator. An empty endpoint
// disables report generation.
type NarrativeData struct {
	Endpoint string        `json:"endpoint,omitempty"`
	APIKey   string        `json:"api_key,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// RESTData configures the REST server
type RESTData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// Defaults
const (
	DefaultOffsetLimit      = 30.0
	DefaultMatchTolerance   = 0.1
	DefaultSettleInterval   = 250 * time.Millisecond
	DefaultSearchResolution = 0.05
	DefaultThreshold        = 15.0
	DefaultMinVoidRows      = 1
	DefaultVarianceK        = 2.0
	DefaultMedianKernel     = 5
	DefaultSessionPath      = "welltie.db"
	DefaultSessionKey       = "default"
	DefaultNarrativeTimeout = 30 * time.Second
	DefaultRESTPort         = 8080
)

// ApplyDefaults fills every unset field with its default
func (c *ConfigData) ApplyDefaults() {
	if c.Engine.OffsetLimit <= 0 {
		c.Engine.OffsetLimit = DefaultOffsetLimit
	}
	if c.Engine.MatchTolerance <= 0 {
		c.Engine.MatchTolerance = DefaultMatchTolerance
	}
	if c.Engine.SettleInterval <= 0 {
		c.Engine.SettleInterval = DefaultSettleInterval
	}
	if c.Engine.SearchResolution <= 0 {
		c.Engine.SearchResolution = DefaultSearchResolution
	}

	if c.Anomaly.Threshold <= 0 {
		c.Anomaly.Threshold = DefaultThreshold
	}
	if c.Anomaly.MinVoidRows <= 0 {
		c.Anomaly.MinVoidRows = DefaultMinVoidRows
	}
	if c.Anomaly.VarianceK <= 0 {
		c.Anomaly.VarianceK = DefaultVarianceK
	}
	if c.Anomaly.MedianKernel <= 0 {
		c.Anomaly.MedianKernel = DefaultMedianKernel
	}

	if c.Session.Backend == "" {
		c.Session.Backend = BackendSQLite
	}
	if c.Session.Backend == BackendSQLite && c.Session.Path == "" {
		c.Session.Path = DefaultSessionPath
	}
	if c.Session.Key == "" {
		c.Session.Key = DefaultSessionKey
	}

	if c.Narrative.Timeout <= 0 {
		c.Narrative.Timeout = DefaultNarrativeTimeout
	}

	if c.REST.Port == 0 {
		c.REST.Port = DefaultRESTPort
	}
}

// Validate checks the configuration for settings that cannot work
func (c *ConfigData) Validate() error {
	var errs []error

	if c.Engine.SearchResolution > c.Engine.OffsetLimit {
		errs = append(errs, fmt.Errorf("search resolution %.3f exceeds offset limit %.3f",
			c.Engine.SearchResolution, c.Engine.OffsetLimit))
	}
	if c.Engine.SearchWorkers < 0 {
		errs = append(errs, fmt.Errorf("search workers must not be negative"))
	}

	switch c.Session.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Session.ConnectionString == "" {
			errs = append(errs, fmt.Errorf("postgres session backend requires a connection string"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.Session.Backend))
	}

	if (c.REST.Cert == "") != (c.REST.Key == "") {
		errs = append(errs, fmt.Errorf("rest cert and key must be set together"))
	}
	if c.REST.Port < 0 || c.REST.Port > 65535 {
		errs = append(errs, fmt.Errorf("rest port %d out of range", c.REST.Port))
	}

	return errors.Join(errs...)
}
