package server

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/litka-chat/litka/pkg/accounts"
	"github.com/litka-chat/litka/pkg/datastore"
	"github.com/litka-chat/litka/pkg/logging"
	"github.com/litka-chat/litka/pkg/profiles"
	"github.com/litka-chat/litka/pkg/rbac"
	"github.com/litka-chat/litka/pkg/store"
)

// Config holds server configuration. Values are layered: defaults, then the
// YAML file, then LITKA_* environment variables, then command-line flags.
type Config struct {
	Addr string `yaml:"addr" env:"LITKA_ADDR"`
	// Port, when set, overrides the port of Addr (PaaS-style PORT variable).
	Port  int    `yaml:"port,omitempty" env:"PORT"`
	Store string `yaml:"store" env:"LITKA_STORE"` // memory | file:<dir> | sqlite:<path>

	AdminSecret     string            `yaml:"admin_secret" env:"LITKA_ADMIN_SECRET"`
	PrivilegedUsers []string          `yaml:"privileged_users" env:"LITKA_PRIVILEGED_USERS" envSeparator:","`
	SpecialRanks    map[string]string `yaml:"special_ranks"` // seeded on startup when absent

	HistorySize int `yaml:"history_size" env:"LITKA_HISTORY_SIZE"`
	SendBuffer  int `yaml:"send_buffer" env:"LITKA_SEND_BUFFER"` // per-connection outbound queue

	Spam      SpamConfig      `yaml:"spam"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`

	MetricsLogInterval time.Duration `yaml:"metrics_log_interval" env:"LITKA_METRICS_LOG_INTERVAL"`
	SweepInterval      time.Duration `yaml:"sweep_interval" env:"LITKA_SWEEP_INTERVAL"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"LITKA_SHUTDOWN_TIMEOUT"`

	// CLI-only actions (run and exit)
	ExportUsers bool `yaml:"-"`
}

// SpamConfig controls automatic muting of repeated messages.
type SpamConfig struct {
	Window    time.Duration `yaml:"window" env:"LITKA_SPAM_WINDOW"`
	Threshold int           `yaml:"threshold" env:"LITKA_SPAM_THRESHOLD"`
	Mute      time.Duration `yaml:"mute" env:"LITKA_SPAM_MUTE"`
}

// RateLimitConfig bounds inbound chat messages per connection and HTTP
// requests per client IP. A zero rate disables the limiter.
type RateLimitConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second" env:"LITKA_RATE_MESSAGES"`
	MessageBurst      int     `yaml:"message_burst" env:"LITKA_RATE_MESSAGE_BURST"`
	HTTPPerSecond     float64 `yaml:"http_per_second" env:"LITKA_RATE_HTTP"`
	HTTPBurst         int     `yaml:"http_burst" env:"LITKA_RATE_HTTP_BURST"`
}

// LogConfig is passed to logging.Setup.
type LogConfig struct {
	Level  string `yaml:"level" env:"LITKA_LOG_LEVEL"`
	Format string `yaml:"format" env:"LITKA_LOG_FORMAT"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":3000",
		Store:       "memory",
		HistorySize: 100,
		SendBuffer:  256,
		Spam: SpamConfig{
			Window:    10 * time.Second,
			Threshold: 3,
			Mute:      20 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 5,
			MessageBurst:      10,
			HTTPPerSecond:     20,
			HTTPBurst:         40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MetricsLogInterval: 60 * time.Second,
		SweepInterval:      time.Minute,
		ShutdownTimeout:    10 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ParseEnv applies environment overrides to target. Unset variables leave
// the current value untouched.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv layers LITKA_* variables and PORT over cfg.
func (c *Config) ApplyEnv() error {
	if err := ParseEnv(c); err != nil {
		return err
	}
	c.applyPort()
	return nil
}

func (c *Config) applyPort() {
	if c.Port <= 0 {
		return
	}
	host := c.Addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	c.Addr = fmt.Sprintf("%s:%d", host, c.Port)
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, _, err := splitStoreURL(c.Store); err != nil {
		errs = append(errs, err)
	}
	if c.HistorySize <= 0 {
		errs = append(errs, errors.New("history_size must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.Spam.Window <= 0 || c.Spam.Threshold <= 0 || c.Spam.Mute <= 0 {
		errs = append(errs, errors.New("spam window, threshold and mute must be positive"))
	}
	if c.RateLimit.MessagesPerSecond < 0 || c.RateLimit.HTTPPerSecond < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func splitStoreURL(url string) (scheme, target string, err error) {
	switch {
	case url == "" || url == "memory":
		return "memory", "", nil
	case strings.HasPrefix(url, "file:"):
		target = strings.TrimPrefix(url, "file:")
		scheme = "file"
	case strings.HasPrefix(url, "sqlite:"):
		target = strings.TrimPrefix(url, "sqlite:")
		scheme = "sqlite"
	default:
		return "", "", fmt.Errorf("unknown store %q (valid: memory, file:<dir>, sqlite:<path>)", url)
	}
	if target == "" {
		return "", "", fmt.Errorf("store %q: missing path", url)
	}
	return scheme, target, nil
}

// OpenStore opens the persistence backend named by url.
func OpenStore(url string) (store.KV, error) {
	scheme, target, err := splitStoreURL(url)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "file":
		return store.NewFile(target)
	case "sqlite":
		return datastore.NewKVStore(target)
	default:
		return store.NewMemory(), nil
	}
}

// UserYAML represents a user in YAML export.
type UserYAML struct {
	Username    string `yaml:"username"`
	Role        string `yaml:"role"`
	SpecialRank string `yaml:"special_rank,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	PrefixColor string `yaml:"prefix_color,omitempty"`
	PMEnabled   bool   `yaml:"pm_enabled"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// ExportUsersYAML exports all accounts with their ranks as YAML.
func ExportUsersYAML(accts *accounts.Store, profs *profiles.Store, roster *rbac.Roster) ([]byte, error) {
	names := accts.Usernames()
	sort.Strings(names)

	export := UsersExport{Users: []UserYAML{}}
	for _, name := range names {
		u := UserYAML{
			Username:    name,
			Role:        roster.RoleOf(name).String(),
			SpecialRank: profs.SpecialRank(name),
			PMEnabled:   profs.PMEnabled(name),
		}
		if p, ok := profs.AdminPrefix(name); ok {
			u.Prefix = p.Name
			u.PrefixColor = string(p.Color)
		}
		export.Users = append(export.Users, u)
	}
	return yaml.Marshal(&export)
}
