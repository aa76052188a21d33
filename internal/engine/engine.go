// Package engine wires the series store, offset controller, offset search,
// combiner, anomaly segmenter, and fit scorer into one review session.
//
// Every derived value (combined rows, scores) is recomputed lazily and
// memoized on the store version and stable offset, so readers always see
// data consistent with the inputs they were computed from.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/welltie/internal/align"
	"github.com/chrissnell/welltie/internal/anomaly"
	"github.com/chrissnell/welltie/internal/busy"
	"github.com/chrissnell/welltie/internal/combine"
	"github.com/chrissnell/welltie/internal/fitscore"
	"github.com/chrissnell/welltie/internal/ingest"
	"github.com/chrissnell/welltie/internal/metrics"
	"github.com/chrissnell/welltie/internal/narrative"
	"github.com/chrissnell/welltie/internal/series"
	"github.com/chrissnell/welltie/internal/session"
	"github.com/chrissnell/welltie/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrAnomalyNotFound is returned for an id not in the current anomaly snapshot
	ErrAnomalyNotFound = errors.New("anomaly not found")

	// ErrNoReport is returned when archiving an anomaly that has no report yet
	ErrNoReport = errors.New("no report generated for anomaly")

	// ErrNoSession is returned by Save and Restore when no offset store is attached
	ErrNoSession = errors.New("no session store configured")

	// ErrNoArchive is returned when no report archive is attached
	ErrNoArchive = errors.New("no report archive configured")
)

// Config holds the tunables of a session
type Config struct {
	OffsetLimit    float64
	Tolerance      float64
	SettleInterval time.Duration
	Search         align.SearchParams
	Scan           anomaly.ScanOptions
	Audit          anomaly.AuditParams
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		OffsetLimit:    align.DefaultLimit,
		Tolerance:      combine.DefaultTolerance,
		SettleInterval: align.DefaultSettleInterval,
		Search:         align.DefaultSearchParams(),
		Scan:           anomaly.ScanOptions{MinVoidRows: 1},
		Audit:          anomaly.DefaultAuditParams(),
	}
}

// Deps are the optional collaborators of an engine. Any of them may be nil.
type Deps struct {
	Sessions   storage.OffsetStore
	SessionKey string
	Archive    storage.ReportArchive
	Narrator   narrative.Generator
}

// Engine is one review session
type Engine struct {
	cfg    Config
	logger *zap.SugaredLogger

	store    *series.Store
	offsets  *align.OffsetController
	searcher *align.Searcher
	combined *combine.Cache
	session  *session.State
	archive  storage.ReportArchive
	narrator narrative.Generator

	scanGuard  busy.Guard
	auditGuard busy.Guard

	mu          sync.RWMutex
	scoresKey   combine.Key
	scores      fitscore.Scores
	scoresValid bool
	anomalies   []anomaly.Anomaly
	audit       *anomaly.AuditReport
	reports     map[string]*narrative.Report
}

// New creates an engine with an empty series store
func New(cfg Config, deps Deps, logger *zap.SugaredLogger) *Engine {
	def := DefaultConfig()
	if cfg.OffsetLimit <= 0 {
		cfg.OffsetLimit = def.OffsetLimit
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Audit.Kernel <= 0 {
		cfg.Audit.Kernel = def.Audit.Kernel
	}
	if cfg.Audit.K <= 0 {
		cfg.Audit.K = def.Audit.K
	}
	cfg.Search.Limit = cfg.OffsetLimit
	cfg.Search.Tolerance = cfg.Tolerance

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    series.NewStore(logger.Named("series")),
		offsets:  align.NewOffsetController(cfg.OffsetLimit, cfg.SettleInterval, logger.Named("offset")),
		searcher: align.NewSearcher(cfg.Search, logger.Named("align")),
		combined: combine.NewCache(),
		archive:  deps.Archive,
		narrator: deps.Narrator,
		reports:  make(map[string]*narrative.Report),
	}
	if deps.Sessions != nil {
		e.session = session.New(deps.Sessions, e.offsets, deps.SessionKey, logger.Named("session"))
	}

	e.offsets.OnCommit(func(stable float64) {
		metrics.OffsetCommitted(stable)
	})
	return e
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Store returns the series store
func (e *Engine) Store() *series.Store {
	return e.store
}

// Offsets returns the offset controller
func (e *Engine) Offsets() *align.OffsetController {
	return e.offsets
}

// ImportOverlay adds a decoded overlay payload to the store
func (e *Engine) ImportOverlay(o ingest.Overlay) string {
	name := o.Name
	if name == "" {
		name = o.ID
	}
	return e.store.AddOverlay(name, o.Color, o.Values)
}

// SetOffset updates the live offset; the stable offset follows once the
// value has settled. Returns the bounded value applied.
func (e *Engine) SetOffset(v float64) float64 {
	return e.offsets.Set(v)
}

// AutoAlign searches for the offset that best aligns the comparison log with
// the reference log and commits it as the stable offset.
func (e *Engine) AutoAlign(ctx context.Context) (align.Result, error) {
	snap := e.store.Snapshot()

	start := time.Now()
	result, err := e.searcher.Search(ctx, snap.Reference.Samples, snap.Comparison.Samples)
	if errors.Is(err, busy.ErrBusy) {
		metrics.BusyRejected(metrics.OpAlign)
		return align.Result{}, err
	}
	metrics.ObserveOperation(metrics.OpAlign, metrics.Status(err, ctx.Err() != nil), time.Since(start))
	if err != nil {
		return align.Result{}, err
	}

	e.offsets.Commit(result.Offset)
	return result, nil
}

// Combined returns the combined dataset at the stable offset
func (e *Engine) Combined() []combine.Row {
	return e.combined.Get(e.store.Snapshot(), e.offsets.Stable(), e.cfg.Tolerance)
}

// Scores returns the fit scores of the current combined dataset
func (e *Engine) Scores() fitscore.Scores {
	snap := e.store.Snapshot()
	key := combine.Key{Version: snap.Version, Offset: e.offsets.Stable(), Tolerance: e.cfg.Tolerance}
	rows := e.combined.Get(snap, key.Offset, key.Tolerance)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scoresValid && e.scoresKey == key {
		return e.scores
	}
	e.scores = fitscore.Score(rows, key.Offset, e.cfg.OffsetLimit)
	e.scoresKey = key
	e.scoresValid = true
	metrics.FitCorrelation(e.scores.Correlation)
	return e.scores
}

// Scan segments the current combined dataset and replaces the anomaly
// snapshot with the result.
func (e *Engine) Scan(threshold float64, sensitive bool) ([]anomaly.Anomaly, error) {
	if err := e.scanGuard.Enter(); err != nil {
		metrics.BusyRejected(metrics.OpScan)
		return nil, err
	}
	defer e.scanGuard.Leave()

	start := time.Now()
	found := anomaly.Scan(e.Combined(), threshold, sensitive, e.cfg.Scan)
	metrics.ObserveOperation(metrics.OpScan, metrics.Status(nil, false), time.Since(start))
	for _, a := range found {
		metrics.AnomalyFound(string(a.Kind), string(a.Severity))
	}

	e.mu.Lock()
	e.anomalies = found
	e.reports = make(map[string]*narrative.Report)
	e.mu.Unlock()

	e.logger.Infof("scan at threshold %.2f (sensitive=%v) found %d anomalies", threshold, sensitive, len(found))
	return append([]anomaly.Anomaly(nil), found...), nil
}

// VarianceAudit runs the local dispersion audit around center and keeps the
// report as the current audit.
func (e *Engine) VarianceAudit(center, window float64) (anomaly.AuditReport, error) {
	if err := e.auditGuard.Enter(); err != nil {
		metrics.BusyRejected(metrics.OpAudit)
		return anomaly.AuditReport{}, err
	}
	defer e.auditGuard.Leave()

	start := time.Now()
	report := anomaly.VarianceAudit(e.Combined(), center, window, e.cfg.Audit)
	metrics.ObserveOperation(metrics.OpAudit, metrics.Status(nil, false), time.Since(start))
	for _, a := range report.Anomalies {
		metrics.AnomalyFound(string(a.Kind), string(a.Severity))
	}

	e.mu.Lock()
	e.audit = &report
	e.mu.Unlock()

	e.logger.Infof("variance audit at %.2f±%.2f m over %d rows flagged %d runs",
		center, window, report.Rows, len(report.Anomalies))
	return report, nil
}

// Anomalies returns the anomaly snapshot of the last scan
func (e *Engine) Anomalies() []anomaly.Anomaly {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]anomaly.Anomaly(nil), e.anomalies...)
}

// Audit returns the last variance audit, if any
func (e *Engine) Audit() (anomaly.AuditReport, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.audit == nil {
		return anomaly.AuditReport{}, false
	}
	return *e.audit, true
}

func (e *Engine) findAnomaly(id string) (anomaly.Anomaly, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, a := range e.anomalies {
		if a.ID == id {
			return a, true
		}
	}
	if e.audit != nil {
		for _, a := range e.audit.Anomalies {
			if a.ID == id {
				return a, true
			}
		}
	}
	return anomaly.Anomaly{}, false
}

// Report asks the narrative generator for an audit of one anomaly. A
// generator failure is logged and returned; the anomaly snapshot is left
// as it was.
func (e *Engine) Report(ctx context.Context, id string) (*narrative.Report, error) {
	a, ok := e.findAnomaly(id)
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, ErrAnomalyNotFound)
	}
	if e.narrator == nil {
		return nil, narrative.ErrDisabled
	}

	report, err := e.narrator.Generate(ctx, narrative.RequestFor(a))
	if err != nil {
		e.logger.Errorf("narrative generation failed for anomaly %s (%.2f-%.2f m): %v", id, a.StartDepth, a.EndDepth, err)
		return nil, fmt.Errorf("generating report for %s: %w", id, err)
	}

	e.mu.Lock()
	e.reports[id] = report
	e.mu.Unlock()
	return report, nil
}

// ArchiveReport stores the generated report of an anomaly in the archive
func (e *Engine) ArchiveReport(ctx context.Context, id string) (storage.ArchivedReport, error) {
	if e.archive == nil {
		return storage.ArchivedReport{}, ErrNoArchive
	}
	a, ok := e.findAnomaly(id)
	if !ok {
		return storage.ArchivedReport{}, fmt.Errorf("archive %s: %w", id, ErrAnomalyNotFound)
	}

	e.mu.RLock()
	report, ok := e.reports[id]
	e.mu.RUnlock()
	if !ok {
		return storage.ArchivedReport{}, fmt.Errorf("archive %s: %w", id, ErrNoReport)
	}

	rec := storage.ArchivedReport{
		ID:             a.ID,
		Kind:           string(a.Kind),
		StartDepth:     a.StartDepth,
		EndDepth:       a.EndDepth,
		AvgDiscordance: a.AvgDiscordance,
		Report:         *report,
		ArchivedAt:     time.Now(),
	}
	if err := e.archive.ArchiveReport(ctx, rec); err != nil {
		return storage.ArchivedReport{}, fmt.Errorf("archive %s: %w", id, err)
	}
	return rec, nil
}

// ArchivedReports lists the report archive
func (e *Engine) ArchivedReports(ctx context.Context) ([]storage.ArchivedReport, error) {
	if e.archive == nil {
		return nil, ErrNoArchive
	}
	return e.archive.ListReports(ctx)
}

// Save persists the stable offset
func (e *Engine) Save(ctx context.Context) (time.Time, error) {
	if e.session == nil {
		return time.Time{}, ErrNoSession
	}
	return e.session.Save(ctx)
}

// Restore loads a previously saved offset. found is false when there was no
// prior session.
func (e *Engine) Restore(ctx context.Context) (offset float64, found bool, err error) {
	if e.session == nil {
		return 0, false, ErrNoSession
	}
	return e.session.Restore(ctx)
}

// Close stops the offset settle timer
func (e *Engine) Close() {
	e.offsets.Close()
}
