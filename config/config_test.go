package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syssam/velox-ogm/scheduler"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, DriverMemory, c.Store.Driver)
	assert.Equal(t, scheduler.Blocking{}, c.Runner())
	assert.Equal(t, "info", c.Level().String())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
store:
  driver: neo4j
  uri: neo4j://localhost:7687
  username: neo4j
  element_ids: true
engine:
  mode: async
  concurrency: 4
log:
  level: debug
  format: json
observability:
  slow_threshold: 250ms
`))
	require.NoError(t, err)
	assert.Equal(t, DriverNeo4j, c.Store.Driver)
	assert.True(t, c.Store.ElementIDs)
	assert.Equal(t, 4, c.Engine.Concurrency)
	assert.Equal(t, 250*time.Millisecond, c.Observability.SlowThreshold)
	assert.Equal(t, "debug", c.Level().String())
	// Unset values keep their defaults.
	assert.True(t, c.Observability.Stats)
	assert.IsType(t, &scheduler.Async{}, c.Runner())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"UnknownDriver", "store: {driver: redis}", "Driver"},
		{"MissingURI", "store: {driver: postgres}", "URI"},
		{"BadMode", "engine: {mode: parallel}", "Mode"},
		{"BadLevel", "log: {level: trace}", "Level"},
		{"NegativeConcurrency", "engine: {mode: async, concurrency: -1}", "Concurrency"},
		{"BreakerWithoutFailures", "store: {driver: memory, breaker: {enabled: true, failures: 0}}", "Failures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := Parse([]byte("store: ["))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OGM_STORE_DRIVER":       "sqlite",
		"OGM_STORE_URI":          "file:ogm?mode=memory",
		"OGM_ENGINE_MODE":        "async",
		"OGM_ENGINE_CONCURRENCY": "2",
		"OGM_TRACING":            "true",
		"OGM_SLOW_THRESHOLD":     "1s",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	c := Default()
	require.NoError(t, c.ApplyEnv(lookup))
	require.NoError(t, c.Validate())
	assert.Equal(t, DriverSQLite, c.Store.Driver)
	assert.Equal(t, 2, c.Engine.Concurrency)
	assert.True(t, c.Observability.Tracing)
	assert.Equal(t, time.Second, c.Observability.SlowThreshold)

	env = map[string]string{"OGM_STATS": "maybe"}
	assert.Error(t, Default().ApplyEnv(lookup))
	env = map[string]string{"OGM_ENGINE_CONCURRENCY": "many"}
	assert.Error(t, Default().ApplyEnv(lookup))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: {mode: async}\n"), 0o600))
	t.Setenv("OGM_LOG_LEVEL", "warn")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, c.Engine.Mode)
	assert.Equal(t, "warn", c.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	c := Default()
	c.Log.Format = "json"
	lvl := zap.NewAtomicLevelAt(c.Level())
	log, err := c.Logger(lvl)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	lvl.SetLevel(zap.DebugLevel)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: info}\n"), 0o600))
	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, zap.NewNop(), WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	changes := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changes <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("log: {level: debug}\n"), 0o600))
	select {
	case c := <-changes:
		assert.Equal(t, "debug", c.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	assert.Equal(t, "debug", w.Current().Log.Level)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: info}\n"), 0o600))
	initial, err := Load(path)
	require.NoError(t, err)
	w, err := NewWatcher(path, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.fs.Close()
	var calls int
	w.OnChange(func(*Config) { calls++ })

	require.NoError(t, os.WriteFile(path, []byte("log: {level: loud}\n"), 0o600))
	w.Reload()
	assert.Zero(t, calls)
	assert.Same(t, initial, w.Current())

	// Unchanged content does not notify.
	require.NoError(t, os.WriteFile(path, []byte("log: {level: info}\n"), 0o600))
	w.Reload()
	assert.Zero(t, calls)
}
