package anomaly

import (
	"math"
	"sort"

	"github.com/chrissnell/welltie/internal/combine"
	"github.com/google/uuid"
)

// ScanOptions tunes the optional parts of a scan
type ScanOptions struct {
	// DetectVoids reports runs of unmatched rows as SIGNAL_VOID anomalies.
	// Off by default: unmatched rows carry zero discordance and are
	// otherwise silently skipped.
	DetectVoids bool

	// MinVoidRows is the shortest unmatched run reported as a void
	MinVoidRows int
}

// EffectiveThreshold returns the threshold actually applied by a scan.
// Non-numeric or negative thresholds coerce to 0.
func EffectiveThreshold(threshold float64, sensitive bool) float64 {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		threshold = 0
	}
	if sensitive {
		return threshold * SensitivityFactor
	}
	return threshold
}

// group accumulates a run of consecutive rows
type group struct {
	start, end float64
	sum        float64
	n          int
}

func (g *group) add(r combine.Row) {
	if g.n == 0 {
		g.start = r.Depth
	}
	g.end = r.Depth
	g.sum += r.Discordance
	g.n++
}

func (g *group) anomaly(kind Kind) Anomaly {
	avg := g.sum / float64(g.n)
	return Anomaly{
		ID:             uuid.New().String(),
		StartDepth:     g.start,
		EndDepth:       g.end,
		AvgDiscordance: avg,
		Severity:       Classify(avg),
		Kind:           kind,
		Rows:           g.n,
	}
}

// Scan walks rows in depth order once and groups consecutive rows whose
// comparison value is present and whose discordance exceeds the effective
// threshold. Each group becomes one DISCORDANCE anomaly; single-row groups
// are reported too. Void runs are appended when opts.DetectVoids is set.
func Scan(rows []combine.Row, threshold float64, sensitive bool, opts ScanOptions) []Anomaly {
	effective := EffectiveThreshold(threshold, sensitive)
	minVoid := opts.MinVoidRows
	if minVoid < 1 {
		minVoid = 1
	}

	anomalies := []Anomaly{}
	var open, void group

	for _, r := range rows {
		if r.Matched() && r.Discordance > effective {
			open.add(r)
		} else if open.n > 0 {
			anomalies = append(anomalies, open.anomaly(KindDiscordance))
			open = group{}
		}

		if !opts.DetectVoids {
			continue
		}
		if !r.Matched() {
			void.add(r)
		} else if void.n > 0 {
			if void.n >= minVoid {
				anomalies = append(anomalies, void.anomaly(KindSignalVoid))
			}
			void = group{}
		}
	}

	if open.n > 0 {
		anomalies = append(anomalies, open.anomaly(KindDiscordance))
	}
	if opts.DetectVoids && void.n >= minVoid {
		anomalies = append(anomalies, void.anomaly(KindSignalVoid))
	}

	// Void and discordance runs never share rows, so depth order is total
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].StartDepth < anomalies[j].StartDepth
	})
	return anomalies
}
