// Package combine joins the reference log, the depth-shifted comparison log,
// and the overlay traces into one depth-aligned dataset.
package combine

import (
	"math"
	"sort"

	"github.com/chrissnell/welltie/internal/series"
)

// DefaultTolerance is the maximum depth distance for a comparison match
const DefaultTolerance = 0.1

// matchEpsilon absorbs float noise from depth + offset arithmetic so that a
// sample exactly one tolerance away still matches.
const matchEpsilon = 1e-9

// Row is one reference depth with its joined values
type Row struct {
	Depth       float64        `json:"depth" msgpack:"depth"`
	Reference   float64        `json:"reference" msgpack:"reference"`
	Comparison  *float64       `json:"comparison" msgpack:"comparison"`
	Discordance float64        `json:"discordance" msgpack:"discordance"`
	Overlays    []OverlayValue `json:"overlays,omitempty" msgpack:"overlays,omitempty"`

	// MatchDepth is the depth of the comparison sample that was joined.
	// Only meaningful when Comparison is non-nil.
	MatchDepth float64 `json:"-" msgpack:"-"`
}

// OverlayValue is an overlay's value at a row depth, nil when absent
type OverlayValue struct {
	ID    string   `json:"id" msgpack:"id"`
	Value *float64 `json:"value" msgpack:"value"`
}

// Matched reports whether the row has a comparison value
func (r Row) Matched() bool {
	return r.Comparison != nil
}

// Combine builds one row per reference sample. For each reference depth d the
// comparison sample nearest to d+offset is joined when it lies within
// tolerance; otherwise the comparison value is nil and discordance is 0.
// Overlay values are looked up by exact depth.
func Combine(reference, comparison []series.Sample, overlays []*series.Series, offset, tolerance float64) []Row {
	rows := make([]Row, len(reference))
	depths := make([]float64, len(comparison))
	for i, s := range comparison {
		depths[i] = s.Depth
	}

	for i, ref := range reference {
		row := Row{Depth: ref.Depth, Reference: ref.Value}

		if idx, ok := Nearest(depths, ref.Depth+offset, tolerance); ok {
			v := comparison[idx].Value
			row.Comparison = &v
			row.MatchDepth = comparison[idx].Depth
			row.Discordance = math.Abs(ref.Value - v)
		}

		if len(overlays) > 0 {
			row.Overlays = make([]OverlayValue, len(overlays))
			for j, o := range overlays {
				row.Overlays[j].ID = o.ID
				if v, ok := o.Values[ref.Depth]; ok {
					row.Overlays[j].Value = &v
				}
			}
		}

		rows[i] = row
	}

	return rows
}

// Nearest returns the index of the depth closest to target within tolerance.
// depths must be sorted ascending. On equal distance the shallower depth wins.
func Nearest(depths []float64, target, tolerance float64) (int, bool) {
	if len(depths) == 0 {
		return 0, false
	}

	i := sort.SearchFloat64s(depths, target)
	best := -1
	bestDist := math.Inf(1)

	// The shallower neighbour is checked first so it keeps ties.
	for _, c := range []int{i - 1, i} {
		if c < 0 || c >= len(depths) {
			continue
		}
		dist := math.Abs(depths[c] - target)
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}

	if best < 0 || bestDist > tolerance+matchEpsilon {
		return 0, false
	}
	return best, true
}

// Pairs extracts the reference and comparison values of matched rows
func Pairs(rows []Row) (ref, cmp []float64) {
	ref = make([]float64, 0, len(rows))
	cmp = make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Comparison == nil {
			continue
		}
		ref = append(ref, r.Reference)
		cmp = append(cmp, *r.Comparison)
	}
	return ref, cmp
}
