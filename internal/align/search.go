// Package align finds and owns the depth offset that reconciles the
// comparison log with the reference log.
package align

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/chrissnell/welltie/internal/busy"
	"github.com/chrissnell/welltie/internal/combine"
	"github.com/chrissnell/welltie/internal/fitscore"
	"github.com/chrissnell/welltie/internal/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultResolution is the coarse search step in meters
const DefaultResolution = 0.05

// tieEpsilon treats correlations and residuals this close as equal
const tieEpsilon = 1e-12

// maxClimbSteps caps the hill-climb refinement
const maxClimbSteps = 256

// SearchParams configures an offset search
type SearchParams struct {
	Limit      float64
	Resolution float64
	Tolerance  float64

	// Workers bounds the parallel coarse scan. 0 uses GOMAXPROCS.
	Workers int
}

// DefaultSearchParams returns the search defaults
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:      DefaultLimit,
		Resolution: DefaultResolution,
		Tolerance:  combine.DefaultTolerance,
	}
}

// Candidate is the evaluation of one offset
type Candidate struct {
	Offset      float64
	Correlation float64
	Residual    float64
	Paired      int
}

// Result is the outcome of a search
type Result struct {
	Offset      float64       `json:"offset"`
	Correlation float64       `json:"correlation"`
	PairedRows  int           `json:"paired_rows"`
	Candidates  int           `json:"candidates"`
	Duration    time.Duration `json:"duration_ns"`
}

// Searcher runs offset searches. It is IDLE or SEARCHING; a search started
// while another is running is rejected with busy.ErrBusy.
type Searcher struct {
	params SearchParams
	logger *zap.SugaredLogger
	guard  busy.Guard
}

// NewSearcher creates a searcher, filling unset parameters with defaults
func NewSearcher(params SearchParams, logger *zap.SugaredLogger) *Searcher {
	def := DefaultSearchParams()
	if params.Limit <= 0 {
		params.Limit = def.Limit
	}
	if params.Resolution <= 0 {
		params.Resolution = def.Resolution
	}
	if params.Tolerance <= 0 {
		params.Tolerance = def.Tolerance
	}
	if params.Workers <= 0 {
		params.Workers = runtime.GOMAXPROCS(0)
	}
	return &Searcher{params: params, logger: logger}
}

// Searching reports whether a search is in flight
func (s *Searcher) Searching() bool {
	return s.guard.State() == busy.Running
}

// Search scans offsets over [-Limit, Limit] at Resolution, then refines the
// best coarse candidate by hill-climbing with a halving step. Candidates are
// ranked by correlation, then by mean match residual, then by smallest
// absolute offset, then by smallest offset. With no matches anywhere every
// candidate scores 0 and the search settles on offset 0.
func (s *Searcher) Search(ctx context.Context, reference, comparison []series.Sample) (Result, error) {
	if err := s.guard.Enter(); err != nil {
		return Result{}, err
	}
	defer s.guard.Leave()

	start := time.Now()
	p := s.params

	n := int(math.Round(p.Limit / p.Resolution))
	offsets := make([]float64, 0, 2*n+1)
	for k := -n; k <= n; k++ {
		offsets = append(offsets, Clamp(float64(k)*p.Resolution, p.Limit))
	}

	candidates := make([]Candidate, len(offsets))
	chunk := (len(offsets) + p.Workers - 1) / p.Workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for lo := 0; lo < len(offsets); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(offsets))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				candidates[i] = Evaluate(reference, comparison, offsets[i], p.Tolerance)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("offset search cancelled: %w", err)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if Better(c, best) {
			best = c
		}
	}
	coarse := best.Offset

	step := p.Resolution / 2
	minStep := p.Resolution / 64
	for i := 0; i < maxClimbSteps && step >= minStep; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("offset search cancelled: %w", err)
		}

		moved := false
		for _, o := range []float64{best.Offset - step, best.Offset + step} {
			o = Clamp(o, p.Limit)
			if c := Evaluate(reference, comparison, o, p.Tolerance); Better(c, best) {
				best = c
				moved = true
			}
		}
		if !moved {
			step /= 2
		}
	}

	result := Result{
		Offset:      best.Offset,
		Correlation: best.Correlation,
		PairedRows:  best.Paired,
		Candidates:  len(candidates),
		Duration:    time.Since(start),
	}
	s.logger.Infof("offset search finished: offset=%.4f m (coarse %.2f) r=%.4f paired=%d in %v",
		result.Offset, coarse, result.Correlation, result.PairedRows, result.Duration)
	return result, nil
}

// Evaluate scores one offset over the rows with a comparison match
func Evaluate(reference, comparison []series.Sample, offset, tolerance float64) Candidate {
	rows := combine.Combine(reference, comparison, nil, offset, tolerance)
	ref, cmp := combine.Pairs(rows)

	c := Candidate{
		Offset:      offset,
		Correlation: fitscore.Pearson(ref, cmp),
		Paired:      len(ref),
	}
	if c.Paired > 0 {
		var sum float64
		for _, r := range rows {
			if r.Matched() {
				sum += math.Abs(r.MatchDepth - (r.Depth + offset))
			}
		}
		c.Residual = sum / float64(c.Paired)
	}
	return c
}

// Better reports whether a ranks ahead of b: higher correlation, then lower
// mean match residual, then smaller |offset|, then smaller offset. The
// residual step must stay ahead of |offset|. Under a pure shift every
// candidate within the match tolerance of the true shift pairs the same
// samples and scores the same correlation, so ranking on |offset| alone
// would settle up to one tolerance away from it.
func Better(a, b Candidate) bool {
	if d := a.Correlation - b.Correlation; math.Abs(d) > tieEpsilon {
		return d > 0
	}
	if d := a.Residual - b.Residual; math.Abs(d) > tieEpsilon {
		return d < 0
	}
	if aa, ab := math.Abs(a.Offset), math.Abs(b.Offset); aa != ab {
		return aa < ab
	}
	return a.Offset < b.Offset
}
