// Package fitscore computes the aggregate fit-quality scores of a combined
// dataset: correlation, a scaled concordance figure, and a drift risk.
package fitscore

import (
	"math"

	"github.com/chrissnell/welltie/internal/combine"
	"gonum.org/v1/gonum/stat"
)

// ConcordanceScale maps a correlation in [0,1] onto the dashboard's 0-6 band.
// This is a cosmetic scale, not a statistical sigma.
const ConcordanceScale = 6.0

// Weights of the drift risk terms
const (
	driftWeightDecorrelation = 0.5
	driftWeightOffset        = 0.3
	driftWeightVoid          = 0.2
)

// Scores holds the fit-quality figures of a combined dataset
type Scores struct {
	// Correlation is Pearson's r over matched rows, clipped to [0,1]
	Correlation float64 `json:"correlation" msgpack:"correlation"`

	// ScaledConcordance is Correlation * ConcordanceScale. Reported as
	// "sigma" for compatibility with existing consumers.
	ScaledConcordance float64 `json:"sigma" msgpack:"sigma"`

	PairedRows int `json:"paired_rows" msgpack:"paired_rows"`
	TotalRows  int `json:"total_rows" msgpack:"total_rows"`

	// DriftRisk in [0,1] blends decorrelation, offset magnitude, and the
	// share of reference rows without a comparison match.
	DriftRisk float64 `json:"drift_risk" msgpack:"drift_risk"`
}

// Pearson returns the Pearson correlation of x and y. Degenerate inputs
// (fewer than two pairs, mismatched lengths, zero variance) yield 0.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	// Rounding can push a perfect fit a hair outside [-1,1]
	return math.Max(-1, math.Min(1, r))
}

// Score computes the fit scores for rows combined at offset. limit is the
// offset bound used to normalize the offset term of the drift risk.
func Score(rows []combine.Row, offset, limit float64) Scores {
	ref, cmp := combine.Pairs(rows)

	r := Pearson(ref, cmp)
	if r < 0 {
		r = 0
	}

	scores := Scores{
		Correlation:       r,
		ScaledConcordance: r * ConcordanceScale,
		PairedRows:        len(ref),
		TotalRows:         len(rows),
	}
	scores.DriftRisk = DriftRisk(r, offset, limit, len(rows)-len(ref), len(rows))
	return scores
}

// DriftRisk scores how likely the comparison log still carries an
// uncorrected depth drift. An empty dataset is maximally risky.
func DriftRisk(correlation, offset, limit float64, voidRows, totalRows int) float64 {
	if totalRows == 0 {
		return 1
	}

	offsetTerm := 0.0
	if limit > 0 {
		offsetTerm = math.Min(1, math.Abs(offset)/limit)
	}
	voidFraction := float64(voidRows) / float64(totalRows)

	risk := driftWeightDecorrelation*(1-correlation) +
		driftWeightOffset*offsetTerm +
		driftWeightVoid*voidFraction

	return math.Max(0, math.Min(1, risk))
}
