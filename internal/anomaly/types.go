// Package anomaly segments a combined dataset into contiguous depth intervals
// of elevated discordance and classifies them by severity.
package anomaly

// Severity classifies an anomaly by its mean discordance
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityMicro    Severity = "MICRO"
)

// Severity thresholds on mean discordance (strictly greater than)
const (
	CriticalDiscordance = 40.0
	WarningDiscordance  = 15.0
)

// SensitivityFactor scales the threshold down for a stricter pass
const SensitivityFactor = 0.9

// Kind names the detector that produced an anomaly
type Kind string

const (
	// KindDiscordance is a run of matched rows above the discordance threshold
	KindDiscordance Kind = "DISCORDANCE"

	// KindSignalVoid is a run of rows with no comparison match
	KindSignalVoid Kind = "SIGNAL_VOID"

	// KindDispersion is a run flagged by the local variance audit
	KindDispersion Kind = "DISPERSION"
)

// Anomaly is a contiguous depth interval flagged by a scan. Anomalies are
// snapshots: IDs are unique within a scan and not stable across scans.
type Anomaly struct {
	ID             string   `json:"id" msgpack:"id"`
	StartDepth     float64  `json:"start_depth" msgpack:"start_depth"`
	EndDepth       float64  `json:"end_depth" msgpack:"end_depth"`
	AvgDiscordance float64  `json:"avg_discordance" msgpack:"avg_discordance"`
	Severity       Severity `json:"severity" msgpack:"severity"`
	Kind           Kind     `json:"kind" msgpack:"kind"`
	Rows           int      `json:"rows" msgpack:"rows"`
}

// Classify maps a mean discordance to a severity
func Classify(avgDiscordance float64) Severity {
	switch {
	case avgDiscordance > CriticalDiscordance:
		return SeverityCritical
	case avgDiscordance > WarningDiscordance:
		return SeverityWarning
	default:
		return SeverityMicro
	}
}
