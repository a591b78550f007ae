package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile creates a configuration instance from an explicit file, or from
// the standard search paths when path is empty
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/markov-phish-filter/")
		v.AddConfigPath("$HOME/.markov-phish-filter")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("PHISH_FILTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Model defaults
	v.SetDefault("markov.order", 2)

	// Corpus defaults
	v.SetDefault("corpus.source", "builtin")
	v.SetDefault("corpus.legitimate_dir", "/data/corpus/legitimate")
	v.SetDefault("corpus.phishing_dir", "/data/corpus/phishing")

	// Detection defaults
	v.SetDefault("detection.max_body_size", 65536)
	v.SetDefault("detection.whitelisted_domains", []string{})

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.type", "memory")
	v.SetDefault("history.retention", "168h")
	v.SetDefault("history.cleanup_frequency", "1h")
	v.SetDefault("history.sqlite_path", "/data/phish_history.db")
	v.SetDefault("history.mysql_dsn", "user:password@tcp(localhost:3306)/phish_filter")

	// Server defaults
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.block_phishing", false)
	v.SetDefault("server.headers.status", "X-Phishing-Status")
	v.SetDefault("server.headers.confidence", "X-Phishing-Confidence")
	v.SetDefault("server.headers.features", "X-Phishing-Features")
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.subject_prefix", "[**PHISHING**] ")
	v.SetDefault("server.modify_subject", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
