package dialect

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned for statements rejected while the breaker is
// open.
var ErrBreakerOpen = gobreaker.ErrOpenState

// BreakerDriver stops sending statements to a store that keeps failing.
// After the configured number of consecutive failures every statement is
// rejected with ErrBreakerOpen until the timeout passes and a probe
// statement succeeds. Cancelled statements are not counted as failures.
type BreakerDriver struct {
	Driver
	cb *gobreaker.CircuitBreaker
}

// BreakerOption configures the BreakerDriver.
type BreakerOption func(*breakerConfig)

type breakerConfig struct {
	settings gobreaker.Settings
	failures uint32
	log      *zap.Logger
}

// WithBreakerFailures sets the number of consecutive failures that opens
// the breaker. Default is 5.
func WithBreakerFailures(n uint32) BreakerOption {
	return func(c *breakerConfig) { c.failures = n }
}

// WithBreakerTimeout sets how long the breaker stays open. Default is 30s.
func WithBreakerTimeout(d time.Duration) BreakerOption {
	return func(c *breakerConfig) { c.settings.Timeout = d }
}

// WithBreakerLog logs state changes to log.
func WithBreakerLog(log *zap.Logger) BreakerOption {
	return func(c *breakerConfig) { c.log = log }
}

// NewBreakerDriver wraps a Driver with a circuit breaker.
func NewBreakerDriver(drv Driver, opts ...BreakerOption) *BreakerDriver {
	c := &breakerConfig{
		settings: gobreaker.Settings{Name: drv.Dialect(), Timeout: 30 * time.Second},
		failures: 5,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= c.failures
	}
	c.settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	c.settings.OnStateChange = func(name string, from, to gobreaker.State) {
		c.log.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &BreakerDriver{Driver: drv, cb: gobreaker.NewCircuitBreaker(c.settings)}
}

// State returns the current breaker state.
func (d *BreakerDriver) State() gobreaker.State {
	return d.cb.State()
}

// Run executes the statement unless the breaker is open.
func (d *BreakerDriver) Run(ctx context.Context, stmt Statement) (*Result, error) {
	return guarded(d.cb, func() (*Result, error) { return d.Driver.Run(ctx, stmt) })
}

// Tx starts a transaction whose statements pass through the breaker.
func (d *BreakerDriver) Tx(ctx context.Context) (Tx, error) {
	v, err := d.cb.Execute(func() (any, error) { return d.Driver.Tx(ctx) })
	if err != nil {
		return nil, err
	}
	return &BreakerTx{Tx: v.(Tx), cb: d.cb}, nil
}

// BreakerTx wraps a transaction with the breaker of its driver.
type BreakerTx struct {
	Tx
	cb *gobreaker.CircuitBreaker
}

// Run executes the statement within the transaction unless the breaker is
// open.
func (tx *BreakerTx) Run(ctx context.Context, stmt Statement) (*Result, error) {
	return guarded(tx.cb, func() (*Result, error) { return tx.Tx.Run(ctx, stmt) })
}

func guarded(cb *gobreaker.CircuitBreaker, run func() (*Result, error)) (*Result, error) {
	v, err := cb.Execute(func() (any, error) { return run() })
	if err != nil {
		return nil, err
	}
	res, _ := v.(*Result)
	return res, nil
}
