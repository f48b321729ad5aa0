// Package telemetry collects in-process statement statistics from the
// database facade. Nothing leaves the process unless a Sink sends it.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/satishbabariya/porm-go/database/api"
)

// Event is one statement run.
type Event struct {
	Kind      string        `json:"kind"`
	Query     string        `json:"query"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// KindStats aggregates the events of one statement kind.
type KindStats struct {
	Kind     string        `json:"kind"`
	Count    int64         `json:"count"`
	Errors   int64         `json:"errors"`
	Total    time.Duration `json:"total"`
	Max      time.Duration `json:"max"`
	Min      time.Duration `json:"min"`
	LastSeen time.Time     `json:"last_seen"`
}

// Average returns the mean duration.
func (s KindStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Sink receives batches of events when the collector flushes.
type Sink func(ctx context.Context, events []Event)

// LogSink writes each flushed batch to logger at debug level.
func LogSink(logger *slog.Logger) Sink {
	return func(ctx context.Context, events []Event) {
		for _, e := range events {
			logger.DebugContext(ctx, "statement", "kind", e.Kind, "duration", e.Duration, "error", e.Error)
		}
	}
}

// Option configures a Collector.
type Option func(*Collector)

// WithSink sets the flush destination.
func WithSink(sink Sink) Option {
	return func(c *Collector) { c.sink = sink }
}

// WithBatchSize flushes once n events are pending.
func WithBatchSize(n int) Option {
	return func(c *Collector) { c.batchSize = max(1, n) }
}

// WithFlushInterval flushes pending events periodically. Zero disables the
// background flush.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Collector) { c.flushInterval = d }
}

// WithEnabled turns collection on or off.
func WithEnabled(enabled bool) Option {
	return func(c *Collector) { c.enabled = enabled }
}

// Collector aggregates statement statistics by kind and hands raw events to
// its Sink in batches.
type Collector struct {
	enabled       bool
	sink          Sink
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	stats   map[string]*KindStats
	pending []Event

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a collector. PORM_TELEMETRY_DISABLED=1 (or true) disables it.
func New(opts ...Option) *Collector {
	c := &Collector{
		enabled:   !isDisabled(),
		batchSize: 100,
		stats:     map[string]*KindStats{},
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.enabled && c.sink != nil && c.flushInterval > 0 {
		c.startBackgroundFlush()
	}
	return c
}

// Enabled reports whether events are recorded.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Middleware records every statement run through a facade.
func (c *Collector) Middleware() api.Middleware {
	return func(ctx context.Context, event *api.QueryEvent, next func() error) error {
		err := next()
		c.Record(event.Query, event.Duration, err)
		return err
	}
}

// Record adds one statement run.
func (c *Collector) Record(query string, d time.Duration, err error) {
	if !c.enabled {
		return
	}
	e := Event{Kind: StatementKind(query), Query: query, Duration: d, Timestamp: time.Now()}
	if err != nil {
		e.Error = err.Error()
	}

	c.mu.Lock()
	s, ok := c.stats[e.Kind]
	if !ok {
		s = &KindStats{Kind: e.Kind, Min: d}
		c.stats[e.Kind] = s
	}
	s.Count++
	if err != nil {
		s.Errors++
	}
	s.Total += d
	s.Max = max(s.Max, d)
	s.Min = min(s.Min, d)
	s.LastSeen = e.Timestamp

	var batch []Event
	if c.sink != nil {
		c.pending = append(c.pending, e)
		if len(c.pending) >= c.batchSize {
			batch = c.takePending()
		}
	}
	c.mu.Unlock()

	if batch != nil {
		c.sink(context.Background(), batch)
	}
}

func (c *Collector) takePending() []Event {
	batch := c.pending
	c.pending = nil
	return batch
}

// Snapshot returns the statistics sorted by kind.
func (c *Collector) Snapshot() []KindStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]KindStats, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b KindStats) int { return strings.Compare(a.Kind, b.Kind) })
	return out
}

// Reset drops the statistics and any pending events.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = map[string]*KindStats{}
	c.pending = nil
}

// Flush hands pending events to the sink.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.takePending()
	c.mu.Unlock()

	if len(batch) > 0 && c.sink != nil {
		c.sink(ctx, batch)
	}
}

func (c *Collector) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Flush(context.Background())
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Shutdown stops the background flush and flushes what is left.
func (c *Collector) Shutdown(ctx context.Context) {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.Flush(ctx)
}

// StatementKind returns the upper-cased leading keyword of a statement, or
// OTHER when there is none.
func StatementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OTHER"
	}
	kw := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	if kw == "" {
		return "OTHER"
	}
	return kw
}

func isDisabled() bool {
	v := os.Getenv("PORM_TELEMETRY_DISABLED")
	return v == "1" || v == "true"
}
