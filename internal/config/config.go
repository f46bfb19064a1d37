package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	IndexURL      string        `mapstructure:"INDEX_URL"`
	VadsURL       string        `mapstructure:"VADS_URL"`
	Operation     string        `mapstructure:"OPERATION"`
	Force         bool          `mapstructure:"FORCE"`
	CSVDir        string        `mapstructure:"CSV_DIR"`
	PageSize      int           `mapstructure:"PAGE_SIZE"`
	MaxVSConcepts int           `mapstructure:"MAX_VS_CONCEPTS"`
	UseLatest     bool          `mapstructure:"USE_LATEST"`
	HTTPTimeout   time.Duration `mapstructure:"HTTP_TIMEOUT"`
	DBMaxConns    int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32         `mapstructure:"DB_MIN_CONNS"`
	Port          string        `mapstructure:"PORT"`
	SyncInterval  time.Duration `mapstructure:"SYNC_INTERVAL"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	Env           string        `mapstructure:"ENV"`
}

var defaults = map[string]any{
	"INDEX_URL":       "http://localhost:9200",
	"VADS_URL":        "https://phinvads.cdc.gov/vocabService/v2",
	"OPERATION":       "sync_all",
	"FORCE":           false,
	"CSV_DIR":         "./csv",
	"PAGE_SIZE":       10000,
	"MAX_VS_CONCEPTS": 100000,
	"USE_LATEST":      true,
	"HTTP_TIMEOUT":    "5m",
	"DB_MAX_CONNS":    4,
	"DB_MIN_CONNS":    1,
	"PORT":            "8000",
	"SYNC_INTERVAL":   "0s",
	"LOG_LEVEL":       "info",
	"ENV":             "production",
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"elasticsearch": "INDEX_URL",
	"vads":          "VADS_URL",
	"operation":     "OPERATION",
	"force":         "FORCE",
	"dir":           "CSV_DIR",
	"port":          "PORT",
	"interval":      "SYNC_INTERVAL",
}

// RegisterFlags defines the flags that Load binds. The index flag keeps its
// historical name "elasticsearch" although any supported index URL works.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("elasticsearch", "e", defaults["INDEX_URL"].(string), "index url (http(s):// Elasticsearch, postgres:// PostgreSQL, mem://)")
	fs.StringP("vads", "v", defaults["VADS_URL"].(string), "PHIN VADS api url")
	fs.StringP("operation", "o", defaults["OPERATION"].(string), "operation to run: op[:oid[:version]]")
	fs.BoolP("force", "f", false, "re-sync entities that are already indexed")
	fs.StringP("dir", "d", defaults["CSV_DIR"].(string), "csv output directory")
}

// RegisterServeFlags defines the flags of the serve command.
func RegisterServeFlags(fs *pflag.FlagSet) {
	fs.String("port", defaults["PORT"].(string), "http listen port")
	fs.Duration("interval", 0, "run sync_all on this interval (0 disables)")
}

// Load reads configuration from defaults, an optional .env file, the
// environment and, when fs is not nil, changed flags, in increasing priority.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		// Bind env vars explicitly so Unmarshal picks them up
		_ = v.BindEnv(key)
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the zerolog level named by LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if c.IndexURL == "" {
		return fmt.Errorf("INDEX_URL is required")
	}
	u, err := url.Parse(c.VadsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("VADS_URL must be an http(s) url, got %q", c.VadsURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxVSConcepts <= 0 {
		return fmt.Errorf("MAX_VS_CONCEPTS must be positive, got %d", c.MaxVSConcepts)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative, got %s", c.SyncInterval)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return nil
}
