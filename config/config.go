// Package config loads the settings of an ogm client: the store to
// connect to, the scheduling model of the engines, logging and
// observability.
//
// Settings come from, lowest priority first, Default, a YAML file and
// OGM_* environment variables:
//
//	store:
//	  driver: neo4j
//	  uri: neo4j://localhost:7687
//	  username: neo4j
//	engine:
//	  mode: async
//	  concurrency: 8
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/syssam/velox-ogm/scheduler"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverNeo4j    = "neo4j"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Engine modes.
const (
	ModeBlocking = "blocking"
	ModeAsync    = "async"
)

// Config is the root configuration.
type Config struct {
	Store         Store         `yaml:"store"`
	Engine        Engine        `yaml:"engine"`
	Log           Log           `yaml:"log"`
	Observability Observability `yaml:"observability"`
}

// Store selects and addresses the backing store.
type Store struct {
	Driver   string `yaml:"driver" validate:"required,oneof=memory neo4j sqlite postgres mysql"`
	URI      string `yaml:"uri" validate:"required_unless=Driver memory"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// ElementIDs selects string element ids over legacy numeric ids.
	ElementIDs bool `yaml:"element_ids"`
	// TablePrefix namespaces the tables of SQL stores.
	TablePrefix string  `yaml:"table_prefix" validate:"omitempty,alphanum"`
	Breaker     Breaker `yaml:"breaker"`
}

// Breaker configures the circuit breaker in front of the store.
type Breaker struct {
	Enabled  bool          `yaml:"enabled"`
	Failures uint32        `yaml:"failures" validate:"required_if=Enabled true"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Engine tunes the save and load engines.
type Engine struct {
	Mode        string `yaml:"mode" validate:"oneof=blocking async"`
	Concurrency int    `yaml:"concurrency" validate:"gte=0,lte=1024"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Observability configures statement statistics and tracing.
type Observability struct {
	Stats         bool          `yaml:"stats"`
	Tracing       bool          `yaml:"tracing"`
	Debug         bool          `yaml:"debug"`
	SlowThreshold time.Duration `yaml:"slow_threshold" validate:"gte=0"`
	Namespace     string        `yaml:"namespace" validate:"omitempty,alphanum"`
}

// Default returns the default configuration: an in-memory store used by
// blocking engines.
func Default() *Config {
	return &Config{
		Store: Store{
			Driver:  DriverMemory,
			Breaker: Breaker{Failures: 5, Timeout: 30 * time.Second},
		},
		Engine: Engine{Mode: ModeBlocking},
		Log:    Log{Level: "info", Format: "console"},
		Observability: Observability{
			Stats:         true,
			SlowThreshold: 100 * time.Millisecond,
			Namespace:     "ogm",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse is like Load but reads the YAML document data and ignores the
// environment.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides settings from OGM_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"OGM_STORE_DRIVER":   &c.Store.Driver,
		"OGM_STORE_URI":      &c.Store.URI,
		"OGM_STORE_USERNAME": &c.Store.Username,
		"OGM_STORE_PASSWORD": &c.Store.Password,
		"OGM_STORE_DATABASE": &c.Store.Database,
		"OGM_ENGINE_MODE":    &c.Engine.Mode,
		"OGM_LOG_LEVEL":      &c.Log.Level,
		"OGM_LOG_FORMAT":     &c.Log.Format,
	}
	for k, p := range strs {
		if v, ok := lookup(k); ok {
			*p = v
		}
	}
	bools := map[string]*bool{
		"OGM_STORE_ELEMENT_IDS": &c.Store.ElementIDs,
		"OGM_STORE_BREAKER":     &c.Store.Breaker.Enabled,
		"OGM_STATS":             &c.Observability.Stats,
		"OGM_TRACING":           &c.Observability.Tracing,
		"OGM_DEBUG":             &c.Observability.Debug,
	}
	for k, p := range bools {
		if v, ok := lookup(k); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", k, err)
			}
			*p = b
		}
	}
	if v, ok := lookup("OGM_ENGINE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OGM_ENGINE_CONCURRENCY: %w", err)
		}
		c.Engine.Concurrency = n
	}
	if v, ok := lookup("OGM_SLOW_THRESHOLD"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: OGM_SLOW_THRESHOLD: %w", err)
		}
		c.Observability.SlowThreshold = d
	}
	return nil
}

// Runner returns the scheduling model selected by the engine settings.
func (c *Config) Runner() scheduler.Runner {
	if c.Engine.Mode == ModeAsync {
		return scheduler.NewAsync(c.Engine.Concurrency)
	}
	return scheduler.Blocking{}
}

// Level returns the configured log level.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Logger builds a logger writing at level, which callers may keep to
// change the level later.
func (c *Config) Logger(level zap.AtomicLevel) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
