package projectconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultPath         = ".opsgraph/config.yaml"
	DefaultStorePath    = ".opsgraph/graph.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultAuditLimit   = 100
	DefaultCallerIP     = "127.0.0.1"
	defaultBusyTimeout  = 5 * time.Second
	maxAuditLimitConfig = 10000
)

type Config struct {
	Store  StoreDefaults  `yaml:"store"`
	Log    LogDefaults    `yaml:"log"`
	Audit  AuditDefaults  `yaml:"audit"`
	Caller CallerDefaults `yaml:"caller"`
}

type StoreDefaults struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout"`
}

type LogDefaults struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuditDefaults struct {
	MirrorPath   string `yaml:"mirror_path"`
	DefaultLimit int    `yaml:"default_limit"`
}

type CallerDefaults struct {
	Actor string `yaml:"actor"`
	IP    string `yaml:"ip"`
	Role  string `yaml:"role"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	configuration := Config{}
	configuration.normalize()
	return configuration
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Default(), nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, err
	}
	return configuration, nil
}

// BusyTimeout parses store.busy_timeout, falling back to the default when
// unset.
func (configuration Config) BusyTimeout() (time.Duration, error) {
	raw := configuration.Store.BusyTimeout
	if raw == "" {
		return defaultBusyTimeout, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse store.busy_timeout: %w", err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("store.busy_timeout must be positive, got %s", raw)
	}
	return parsed, nil
}

func (configuration *Config) normalize() {
	configuration.Store.Path = strings.TrimSpace(configuration.Store.Path)
	if configuration.Store.Path == "" {
		configuration.Store.Path = DefaultStorePath
	}
	configuration.Store.BusyTimeout = strings.TrimSpace(configuration.Store.BusyTimeout)
	configuration.Log.Level = strings.ToLower(strings.TrimSpace(configuration.Log.Level))
	if configuration.Log.Level == "" {
		configuration.Log.Level = DefaultLogLevel
	}
	configuration.Log.Format = strings.ToLower(strings.TrimSpace(configuration.Log.Format))
	if configuration.Log.Format == "" {
		configuration.Log.Format = DefaultLogFormat
	}
	configuration.Audit.MirrorPath = strings.TrimSpace(configuration.Audit.MirrorPath)
	if configuration.Audit.DefaultLimit <= 0 {
		configuration.Audit.DefaultLimit = DefaultAuditLimit
	}
	configuration.Caller.Actor = strings.TrimSpace(configuration.Caller.Actor)
	configuration.Caller.IP = strings.TrimSpace(configuration.Caller.IP)
	if configuration.Caller.IP == "" {
		configuration.Caller.IP = DefaultCallerIP
	}
	configuration.Caller.Role = strings.ToLower(strings.TrimSpace(configuration.Caller.Role))
}

func (configuration Config) validate() error {
	switch configuration.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log.level %q", configuration.Log.Level)
	}
	switch configuration.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", configuration.Log.Format)
	}
	if configuration.Audit.DefaultLimit > maxAuditLimitConfig {
		return fmt.Errorf("audit.default_limit must be at most %d", maxAuditLimitConfig)
	}
	if _, err := configuration.BusyTimeout(); err != nil {
		return err
	}
	return nil
}
