package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	ice, ok := cfg.Target("ice")
	require.True(t, ok)
	assert.Equal(t, "cryosphere", ice.Collection)
	assert.Equal(t, "nucleation_01", ice.Field)

	sc, ok := cfg.Target("social-contract")
	require.True(t, ok)
	assert.Equal(t, "cracks-data", sc.Collection)
	assert.Equal(t, "remote_05", sc.Field)

	_, ok = cfg.Dichotomy("executive")
	assert.True(t, ok)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cracks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
database:
  driver: sqlite
  path: /tmp/x.db
sessions:
  ttl: 2h
targets:
  - name: glacier
    collection: cryosphere
    field: calving_02
dichotomies:
  - name: time
    label: Confidence
    messages: ["a", "b", "c"]
`), 0o644))
	t.Setenv("CRACKS_ADDR", ":9100")
	t.Setenv("CRACKS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "calving_02", cfg.Targets[0].Field)
	d, ok := cfg.Dichotomy("time")
	require.True(t, ok)
	assert.Equal(t, [3]string{"a", "b", "c"}, d.Messages)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"no targets":      func(c *Config) { c.Targets = nil },
		"empty field":     func(c *Config) { c.Targets[0].Field = " " },
		"duplicate":       func(c *Config) { c.Targets[1].Name = c.Targets[0].Name },
		"driver":          func(c *Config) { c.Database.Driver = "postgres" },
		"sqlite no path":  func(c *Config) { c.Database.Path = "" },
		"log level":       func(c *Config) { c.Log.Level = "loud" },
		"session ttl":     func(c *Config) { c.Sessions.TTL = 0 },
		"dichotomy names": func(c *Config) { c.Dichotomies = append(c.Dichotomies, c.Dichotomies[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = DriverMemory
	cfg.Database.Path = ""
	assert.NoError(t, cfg.Validate())
}
