// Package config loads the service configuration from a YAML file and the
// CRACKS_* environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/cracks/internal/logging"
	"github.com/soaringjerry/cracks/internal/services"
	"github.com/soaringjerry/cracks/internal/utils"
)

// DriverMemory keeps records in process memory instead of SQLite.
const DriverMemory = "memory"

type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Database    DatabaseConfig       `yaml:"database"`
	Auth        AuthConfig           `yaml:"auth"`
	Log         LogConfig            `yaml:"log"`
	NATS        NATSConfig           `yaml:"nats"`
	Sessions    SessionConfig        `yaml:"sessions"`
	Targets     []services.Target    `yaml:"targets"`
	Dichotomies []services.Dichotomy `yaml:"dichotomies"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Commit          string        `yaml:"commit"`
	BuildTime       string        `yaml:"build_time"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3" (cgo), "sqlite" (pure Go) or "memory".
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	MigrationsDir string `yaml:"migrations_dir"`
	// Snapshot is a legacy JSON dump imported when Path does not exist yet.
	Snapshot string `yaml:"snapshot"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	AdminUser         string        `yaml:"admin_user"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// NATSConfig enables submission events; an empty URL disables them.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns the configuration of a local deployment serving
// both presentations.
func DefaultConfig() *Config {
	executive := services.NewDichotomy("executive")
	executive.Label = "future_outlook"
	executive.Question = "Are you ready to donate? (White: Yes, Black: No, Nuances: I need time)"
	executive.Messages = [3]string{"*Zero,* black!", "*One*. White", "*between* gray"}

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "data/cracks.db",
		},
		Auth: AuthConfig{
			TokenTTL:  30 * 24 * time.Hour,
			AdminUser: "admin",
		},
		Log:  LogConfig{Level: "info"},
		NATS: NATSConfig{SubjectPrefix: "cracks.submissions"},
		Sessions: SessionConfig{
			TTL:           30 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Targets: []services.Target{
			{Name: "social-contract", Collection: "cracks-data", Field: "remote_05"},
			{Name: "ice", Collection: "cryosphere", Field: "nucleation_01"},
		},
		Dichotomies: []services.Dichotomy{executive},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields with the CRACKS_* variables that are set.
func (c *Config) ApplyEnv() {
	c.Server.Addr = utils.SafeEnv("CRACKS_ADDR", c.Server.Addr)
	c.Server.Commit = utils.SafeEnv("CRACKS_COMMIT", c.Server.Commit)
	c.Server.BuildTime = utils.SafeEnv("CRACKS_BUILD_TIME", c.Server.BuildTime)
	c.Database.Driver = utils.SafeEnv("CRACKS_DB_DRIVER", c.Database.Driver)
	c.Database.Path = utils.SafeEnv("CRACKS_DB_PATH", c.Database.Path)
	c.Database.Snapshot = utils.SafeEnv("CRACKS_SNAPSHOT_PATH", c.Database.Snapshot)
	c.Auth.JWTSecret = utils.SafeEnv("CRACKS_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AdminUser = utils.SafeEnv("CRACKS_ADMIN_USER", c.Auth.AdminUser)
	c.Auth.AdminPasswordHash = utils.SafeEnv("CRACKS_ADMIN_PASSWORD_HASH", c.Auth.AdminPasswordHash)
	c.Log.Level = utils.SafeEnv("CRACKS_LOG_LEVEL", c.Log.Level)
	c.NATS.URL = utils.SafeEnv("CRACKS_NATS_URL", c.NATS.URL)
	c.Sessions.TTL = utils.SafeEnvDuration("CRACKS_SESSION_TTL", c.Sessions.TTL)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	seen := map[string]bool{}
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Collection) == "" || strings.TrimSpace(t.Field) == "" {
			return fmt.Errorf("targets[%d]: name, collection and field are required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate target %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	names := map[string]bool{}
	for i, d := range c.Dichotomies {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("dichotomies[%d]: name is required", i)
		}
		if names[d.Name] {
			return fmt.Errorf("dichotomies[%d]: duplicate dichotomy %q", i, d.Name)
		}
		names[d.Name] = true
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Target returns the target with the given name.
func (c *Config) Target(name string) (services.Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return services.Target{}, false
}

// Dichotomy returns the dichotomy question with the given name.
func (c *Config) Dichotomy(name string) (services.Dichotomy, bool) {
	for _, d := range c.Dichotomies {
		if d.Name == name {
			return d, true
		}
	}
	return services.Dichotomy{}, false
}
