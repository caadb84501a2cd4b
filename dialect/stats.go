package dialect

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// QueryStats holds statement execution statistics.
type QueryStats struct {
	// TotalReads is the number of read statements executed.
	TotalReads atomic.Int64
	// TotalWrites is the number of write statements executed.
	TotalWrites atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalReads:    s.TotalReads.Load(),
		TotalWrites:   s.TotalWrites.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalReads.Store(0)
	s.TotalWrites.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalReads    int64
	TotalWrites   int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalReads + s.TotalWrites
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"reads=%d writes=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalReads, s.TotalWrites, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, stmt Statement, duration time.Duration)

// StatsDriver wraps a Driver with statement statistics collection. It also
// implements prometheus.Collector.
type StatsDriver struct {
	Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex

	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger.
func WithSlowQueryLog(log *zap.Logger) StatsOption {
	return WithSlowQueryHook(func(_ context.Context, stmt Statement, duration time.Duration) {
		log.Warn("slow statement detected",
			zap.Stringer("op", stmt.Op()),
			zap.Duration("duration", duration),
		)
	})
}

// WithNamespace sets the prometheus namespace of the exported metrics.
// Default is "ogm".
func WithNamespace(ns string) StatsOption {
	return func(s *StatsDriver) {
		s.statements, s.duration = newMetrics(ns)
	}
}

func newMetrics(ns string) (*prometheus.CounterVec, *prometheus.HistogramVec) {
	statements := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "statements_total",
			Help:      "Total number of store statements by op and outcome",
		},
		[]string{"op", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "statement_duration_seconds",
			Help:      "Store statement duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	return statements, duration
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	drv := dialect.NewStatsDriver(memory.New(),
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowQueryLog(logger),
//	)
//	prometheus.MustRegister(drv)
func NewStatsDriver(drv Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	s.statements, s.duration = newMetrics("ogm")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Run executes a statement and records statistics.
func (d *StatsDriver) Run(ctx context.Context, stmt Statement) (*Result, error) {
	start := time.Now()
	res, err := d.Driver.Run(ctx, stmt)
	d.record(ctx, stmt, start, err)
	return res, err
}

func (d *StatsDriver) record(ctx context.Context, stmt Statement, start time.Time, err error) {
	duration := time.Since(start)
	if stmt.Op().IsWrite() {
		d.stats.TotalWrites.Add(1)
	} else {
		d.stats.TotalReads.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	status := "ok"
	if err != nil {
		d.stats.Errors.Add(1)
		status = "error"
	}
	d.statements.WithLabelValues(stmt.Op().String(), status).Inc()
	d.duration.WithLabelValues(stmt.Op().String()).Observe(duration.Seconds())

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, stmt, duration)
		}
	}
}

// Describe implements prometheus.Collector.
func (d *StatsDriver) Describe(ch chan<- *prometheus.Desc) {
	d.statements.Describe(ch)
	d.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (d *StatsDriver) Collect(ch chan<- prometheus.Metric) {
	d.statements.Collect(ch)
	d.duration.Collect(ch)
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	Tx
	driver *StatsDriver
}

// Run executes a statement within the transaction and records statistics.
func (tx *StatsTx) Run(ctx context.Context, stmt Statement) (*Result, error) {
	start := time.Now()
	res, err := tx.Tx.Run(ctx, stmt)
	tx.driver.record(ctx, stmt, start, err)
	return res, err
}

// DebugDriver wraps a Driver with debug logging.
type DebugDriver struct {
	Driver
	log *zap.Logger
}

// NewDebugDriver wraps a Driver and logs every statement at debug level.
func NewDebugDriver(drv Driver, log *zap.Logger) *DebugDriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &DebugDriver{Driver: drv, log: log}
}

// Run logs the statement and executes it.
func (d *DebugDriver) Run(ctx context.Context, stmt Statement) (*Result, error) {
	d.log.Debug("run", zap.Stringer("op", stmt.Op()), zap.String("args", fmt.Sprintf("%+v", stmt)))
	return d.Driver.Run(ctx, stmt)
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	d.log.Debug("begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx wraps a transaction with debug logging.
type DebugTx struct {
	Tx
	log *zap.Logger
}

// Run logs the statement and executes it within the transaction.
func (tx *DebugTx) Run(ctx context.Context, stmt Statement) (*Result, error) {
	tx.log.Debug("tx run", zap.Stringer("op", stmt.Op()), zap.String("args", fmt.Sprintf("%+v", stmt)))
	return tx.Tx.Run(ctx, stmt)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

// Ensure interfaces are implemented.
var (
	_ Driver               = (*StatsDriver)(nil)
	_ Tx                   = (*StatsTx)(nil)
	_ Driver               = (*DebugDriver)(nil)
	_ Tx                   = (*DebugTx)(nil)
	_ prometheus.Collector = (*StatsDriver)(nil)
)
