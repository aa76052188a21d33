package series

import "sort"

// Identifiers of the two primary series. Overlays get generated ids.
const (
	ReferenceID  = "reference"
	ComparisonID = "comparison"
)

// Kind distinguishes the role a series plays in the session
type Kind string

const (
	KindReference  Kind = "reference"
	KindComparison Kind = "comparison"
	KindOverlay    Kind = "overlay"
)

// Sample represents a single depth/value measurement
type Sample struct {
	Depth float64 `json:"depth" msgpack:"depth"`
	Value float64 `json:"value" msgpack:"value"`
}

// Series is a named, colored log trace ordered by depth
type Series struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Visible bool     `json:"visible"`
	Samples []Sample `json:"samples"`

	// Values indexes overlay samples by exact depth. Nil for primary series.
	Values map[float64]float64 `json:"-"`
}

// Snapshot is an immutable view of the store at a given version
type Snapshot struct {
	Version    uint64
	Reference  *Series
	Comparison *Series
	Overlays   []*Series
}

// Normalize returns a copy of samples sorted ascending by depth with
// duplicate depths collapsed (the last occurrence wins).
func Normalize(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })

	deduped := out[:0]
	for _, s := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Depth == s.Depth {
			deduped[n-1] = s
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}

// SamplesFromMap builds an ordered sample list from a depth-keyed map
func SamplesFromMap(values map[float64]float64) []Sample {
	samples := make([]Sample, 0, len(values))
	for d, v := range values {
		samples = append(samples, Sample{Depth: d, Value: v})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Depth < samples[j].Depth })
	return samples
}

func clone(s *Series) *Series {
	if s == nil {
		return nil
	}
	c := *s
	c.Samples = append([]Sample(nil), s.Samples...)
	if s.Values != nil {
		c.Values = make(map[float64]float64, len(s.Values))
		for d, v := range s.Values {
			c.Values[d] = v
		}
	}
	return &c
}
