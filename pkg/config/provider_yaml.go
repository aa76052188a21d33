package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file, applies
// defaults, and validates the result. A missing file name yields the
// defaults.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	var yamlConfig ConfigYAML

	if y.filename != "" {
		cfgFile, err := os.ReadFile(y.filename)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", y.filename, err)
		}
	}

	// Convert to our internal format
	config := &ConfigData{
		Engine: EngineData{
			OffsetLimit:      yamlConfig.Engine.OffsetLimit,
			MatchTolerance:   yamlConfig.Engine.MatchTolerance,
			SettleInterval:   yamlConfig.Engine.SettleInterval,
			SearchResolution: yamlConfig.Engine.SearchResolution,
			SearchWorkers:    yamlConfig.Engine.SearchWorkers,
		},
		Anomaly: AnomalyData{
			Threshold:    yamlConfig.Anomaly.Threshold,
			Sensitive:    yamlConfig.Anomaly.Sensitive,
			DetectVoids:  yamlConfig.Anomaly.DetectVoids,
			MinVoidRows:  yamlConfig.Anomaly.MinVoidRows,
			VarianceK:    yamlConfig.Anomaly.VarianceK,
			MedianKernel: yamlConfig.Anomaly.MedianKernel,
		},
		Session: SessionData{
			Backend:          yamlConfig.Session.Backend,
			Path:             yamlConfig.Session.Path,
			ConnectionString: yamlConfig.Session.ConnectionString,
			Key:              yamlConfig.Session.Key,
		},
		Narrative: NarrativeData{
			Endpoint: yamlConfig.Narrative.Endpoint,
			APIKey:   yamlConfig.Narrative.APIKey,
			Timeout:  yamlConfig.Narrative.Timeout,
		},
		REST: RESTData{
			Cert:       yamlConfig.REST.Cert,
			Key:        yamlConfig.REST.Key,
			ListenAddr: yamlConfig.REST.ListenAddr,
			Port:       yamlConfig.REST.Port,
		},
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	y.config = config
	return config, nil
}

// GetEngineConfig returns the engine section
func (y *YAMLProvider) GetEngineConfig() (*EngineData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Engine, nil
}

// GetSessionConfig returns the session section
func (y *YAMLProvider) GetSessionConfig() (*SessionData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Session, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with the kebab-case keys used in config files
type ConfigYAML struct {
	Engine    EngineYAML    `yaml:"engine,omitempty"`
	Anomaly   AnomalyYAML   `yaml:"anomaly,omitempty"`
	Session   SessionYAML   `yaml:"session,omitempty"`
	Narrative NarrativeYAML `yaml:"narrative,omitempty"`
	REST      RESTYAML      `yaml:"rest,omitempty"`
}

type EngineYAML struct {
	OffsetLimit      float64       `yaml:"offset-limit,omitempty"`
	MatchTolerance   float64       `yaml:"match-tolerance,omitempty"`
	SettleInterval   time.Duration `yaml:"settle-interval,omitempty"`
	SearchResolution float64       `yaml:"search-resolution,omitempty"`
	SearchWorkers    int           `yaml:"search-workers,omitempty"`
}

type AnomalyYAML struct {
	Threshold    float64 `yaml:"threshold,omitempty"`
	Sensitive    bool    `yaml:"sensitive,omitempty"`
	DetectVoids  bool    `yaml:"detect-voids,omitempty"`
	MinVoidRows  int     `yaml:"min-void-rows,omitempty"`
	VarianceK    float64 `yaml:"variance-k,omitempty"`
	MedianKernel int     `yaml:"median-kernel,omitempty"`
}

type SessionYAML struct {
	Backend          string `yaml:"backend,omitempty"`
	Path             string `yaml:"path,omitempty"`
	ConnectionString string `yaml:"connection-string,omitempty"`
	Key              string `yaml:"key,omitempty"`
}

type NarrativeYAML struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	APIKey   string        `yaml:"api-key,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type RESTYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}
