package client

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/syssam/velox-ogm/config"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/dialect/memory"
	"github.com/syssam/velox-ogm/dialect/neo4j"
	"github.com/syssam/velox-ogm/dialect/sql/sqlgraph"
)

// Open connects to the store described by cfg and returns a client using
// the scheduling model, logging and observability it selects. Options
// given override the ones derived from cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(cfg.Level())
	log, err := cfg.Logger(level)
	if err != nil {
		return nil, fmt.Errorf("client: building logger: %w", err)
	}
	drv, err := OpenDriver(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if b := cfg.Store.Breaker; b.Enabled {
		drv = dialect.NewBreakerDriver(drv,
			dialect.WithBreakerFailures(b.Failures),
			dialect.WithBreakerTimeout(b.Timeout),
			dialect.WithBreakerLog(log.Named("breaker")),
		)
	}
	var stats *dialect.StatsDriver
	if o := cfg.Observability; o.Stats {
		stats = dialect.NewStatsDriver(drv,
			dialect.WithSlowThreshold(o.SlowThreshold),
			dialect.WithSlowQueryLog(log.Named("slow")),
			dialect.WithNamespace(o.Namespace),
		)
		drv = stats
	}
	if cfg.Observability.Tracing {
		drv = dialect.NewTraceDriver(drv)
	}
	base := []Option{Driver(drv), Runner(cfg.Runner()), Log(log)}
	if cfg.Observability.Debug {
		base = append(base, Debug())
	}
	c, err := NewClient(append(base, opts...)...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	c.stats = stats
	c.level = &level
	log.Info("client opened",
		zap.String("dialect", c.Dialect()),
		zap.String("mode", cfg.Engine.Mode),
	)
	return c, nil
}

// OpenDriver connects to the store described by s.
func OpenDriver(ctx context.Context, s config.Store, log *zap.Logger) (dialect.Driver, error) {
	switch s.Driver {
	case config.DriverMemory:
		opts := []memory.Option{memory.WithLogger(log.Named("memory"))}
		if s.ElementIDs {
			opts = append(opts, memory.WithElementIDs())
		}
		return memory.New(opts...), nil
	case config.DriverNeo4j:
		opts := []neo4j.Option{neo4j.WithLogger(log.Named("neo4j"))}
		if s.Database != "" {
			opts = append(opts, neo4j.WithDatabase(s.Database))
		}
		if s.ElementIDs {
			opts = append(opts, neo4j.WithElementIDs())
		}
		return neo4j.Open(ctx, s.URI, s.Username, s.Password, opts...)
	case config.DriverSQLite, config.DriverPostgres, config.DriverMySQL:
		opts := []sqlgraph.Option{sqlgraph.WithLogger(log.Named("sqlgraph"))}
		if s.TablePrefix != "" {
			opts = append(opts, sqlgraph.WithTablePrefix(s.TablePrefix))
		}
		if s.ElementIDs {
			opts = append(opts, sqlgraph.WithElementIDs())
		}
		return sqlgraph.Open(ctx, s.Driver, s.URI, opts...)
	default:
		return nil, fmt.Errorf("client: unsupported store driver %q", s.Driver)
	}
}

// Reconfigure applies the settings of cfg that can change at run time: the
// log level and the slow statement threshold.
func (c *Client) Reconfigure(cfg *config.Config) {
	if c.level != nil {
		c.level.SetLevel(cfg.Level())
	}
	if c.stats != nil {
		c.stats.SetSlowThreshold(cfg.Observability.SlowThreshold)
	}
	c.log.Info("client reconfigured",
		zap.Stringer("level", cfg.Level()),
		zap.Duration("slow_threshold", cfg.Observability.SlowThreshold),
	)
}

// Collector returns the prometheus collector of the statement statistics,
// or nil when the client was opened without them.
func (c *Client) Collector() prometheus.Collector {
	if c.stats == nil {
		return nil
	}
	return c.stats
}
