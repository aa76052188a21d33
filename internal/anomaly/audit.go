package anomaly

import (
	"math"
	"sort"

	"github.com/chrissnell/welltie/internal/combine"
	"gonum.org/v1/gonum/stat"
)

// AuditParams tunes the local variance audit
type AuditParams struct {
	// Kernel is the median filter width used to estimate the local
	// discordance baseline. Must be odd; even values are rounded up.
	Kernel int

	// K is how many standard deviations above the mean residual a row must
	// sit to be flagged.
	K float64
}

// DefaultAuditParams returns the audit defaults
func DefaultAuditParams() AuditParams {
	return AuditParams{
		Kernel: 5,
		K:      2.0,
	}
}

// AuditReport is the outcome of a variance audit around one depth
type AuditReport struct {
	Center    float64   `json:"center" msgpack:"center"`
	Window    float64   `json:"window" msgpack:"window"`
	Rows      int       `json:"rows" msgpack:"rows"`
	Mean      float64   `json:"mean_residual" msgpack:"mean_residual"`
	StdDev    float64   `json:"stddev_residual" msgpack:"stddev_residual"`
	Anomalies []Anomaly `json:"anomalies" msgpack:"anomalies"`
}

// VarianceAudit re-examines matched rows within ±window of center. The local
// discordance baseline is a median filter of the windowed discordance; rows
// whose residual above that baseline exceeds mean + K·stddev of all
// residuals are grouped into consecutive DISPERSION anomalies. This surfaces
// short excursions that sit below the fixed scan threshold.
func VarianceAudit(rows []combine.Row, center, window float64, params AuditParams) AuditReport {
	window = math.Abs(window)
	if math.IsNaN(window) || math.IsInf(window, 0) {
		window = 0
	}
	report := AuditReport{Center: center, Window: window, Anomalies: []Anomaly{}}

	local := make([]combine.Row, 0)
	for _, r := range rows {
		if r.Matched() && r.Depth >= center-window && r.Depth <= center+window {
			local = append(local, r)
		}
	}
	report.Rows = len(local)
	if len(local) < 3 {
		return report
	}

	disc := make([]float64, len(local))
	for i, r := range local {
		disc[i] = r.Discordance
	}
	baseline := MedFilt(disc, params.Kernel)

	residuals := make([]float64, len(local))
	for i := range disc {
		residuals[i] = disc[i] - baseline[i]
	}

	mean, std := stat.MeanStdDev(residuals, nil)
	report.Mean = mean
	report.StdDev = std
	if std == 0 || math.IsNaN(std) {
		return report
	}

	k := params.K
	if k <= 0 {
		k = DefaultAuditParams().K
	}

	var open group
	for i, r := range local {
		if residuals[i]-mean > k*std {
			open.add(r)
			continue
		}
		if open.n > 0 {
			report.Anomalies = append(report.Anomalies, open.anomaly(KindDispersion))
			open = group{}
		}
	}
	if open.n > 0 {
		report.Anomalies = append(report.Anomalies, open.anomaly(KindDispersion))
	}

	return report
}

// MedFilt applies a median filter of the given width. Unlike a zero-padded
// filter, the edges are padded by repeating the first and last values so a
// window boundary does not read as a drop in discordance.
func MedFilt(data []float64, kernelSize int) []float64 {
	if kernelSize < 1 {
		kernelSize = 1
	}
	if kernelSize%2 == 0 {
		kernelSize++
	}
	n := len(data)
	if n == 0 {
		return nil
	}

	half := kernelSize / 2
	result := make([]float64, n)
	window := make([]float64, kernelSize)

	for i := 0; i < n; i++ {
		for j := -half; j <= half; j++ {
			idx := i + j
			if idx < 0 {
				idx = 0
			} else if idx >= n {
				idx = n - 1
			}
			window[j+half] = data[idx]
		}

		sorted := append([]float64(nil), window...)
		sort.Float64s(sorted)
		result[i] = sorted[half]
	}
	return result
}
