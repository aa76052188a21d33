package align

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultLimit bounds the depth offset in meters
const DefaultLimit = 30.0

// DefaultSettleInterval is how long the live offset must hold still before
// it is committed as the stable offset
const DefaultSettleInterval = 250 * time.Millisecond

// Clamp coerces a non-numeric or infinite offset to 0 and bounds it to
// [-limit, limit]
func Clamp(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// ParseOffset parses user input into a bounded offset. Anything that does
// not parse as a number becomes 0.
func ParseOffset(s string, limit float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Clamp(v, limit)
}

// CommitFunc is called with every newly committed stable offset
type CommitFunc func(stable float64)

// OffsetController owns the live and stable offsets. Set updates the live
// offset immediately and (re)arms a settle timer; the stable offset is only
// committed once the timer fires without having been superseded.
type OffsetController struct {
	mu        sync.Mutex
	logger    *zap.SugaredLogger
	limit     float64
	settle    time.Duration
	live      float64
	stable    float64
	timer     *time.Timer
	gen       uint64
	pending   bool
	closed    bool
	listeners []CommitFunc
}

// NewOffsetController creates a controller with both offsets at 0
func NewOffsetController(limit float64, settle time.Duration, logger *zap.SugaredLogger) *OffsetController {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if settle <= 0 {
		settle = DefaultSettleInterval
	}
	return &OffsetController{
		logger: logger,
		limit:  limit,
		settle: settle,
	}
}

// OnCommit registers a listener for stable offset commits. Listeners run on
// the committing goroutine and must not call back into Set or Commit.
func (c *OffsetController) OnCommit(fn CommitFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Set updates the live offset and restarts the settle timer. It returns the
// bounded value that was applied.
func (c *OffsetController) Set(v float64) float64 {
	v = Clamp(v, c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.live
	}

	c.live = v
	c.gen++
	c.pending = true
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.gen
	c.timer = time.AfterFunc(c.settle, func() { c.settled(gen) })
	return v
}

// Commit sets both offsets at once, discarding any pending value
func (c *OffsetController) Commit(v float64) float64 {
	v = Clamp(v, c.limit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.stable
	}
	c.gen++
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.live = v
	c.stable = v
	listeners := append([]CommitFunc(nil), c.listeners...)
	c.mu.Unlock()

	c.notify(listeners, v)
	return v
}

func (c *OffsetController) settled(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		// superseded by a newer Set or Commit
		c.mu.Unlock()
		return
	}
	c.stable = c.live
	c.pending = false
	c.timer = nil
	v := c.stable
	listeners := append([]CommitFunc(nil), c.listeners...)
	c.mu.Unlock()

	c.logger.Debugf("stable offset committed: %.4f m", v)
	c.notify(listeners, v)
}

func (c *OffsetController) notify(listeners []CommitFunc, v float64) {
	for _, fn := range listeners {
		fn(v)
	}
}

// Live returns the most recently requested offset
func (c *OffsetController) Live() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Stable returns the committed offset used for combining
func (c *OffsetController) Stable() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stable
}

// Pending reports whether a live value is waiting to settle
func (c *OffsetController) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Limit returns the offset bound
func (c *OffsetController) Limit() float64 {
	return c.limit
}

// Close stops the settle timer. A pending live value is dropped.
func (c *OffsetController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
