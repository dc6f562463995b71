// Package config loads the library configuration from the environment or
// an explicit file via viper. Backend wiring stays declarative: partitions
// map to named backends, backends carry their driver and DSN.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config drives bootstrap: which backend serves which partition, and the
// knobs of the built-in credential handlers.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DefaultRealm is the realm a freshly bootstrapped manager is bound to.
	DefaultRealm string `mapstructure:"DEFAULT_REALM"`

	// DefaultBackend serves every partition without an explicit entry in
	// Partitions. Built-in backends: "memory", "sql".
	DefaultBackend string `mapstructure:"DEFAULT_BACKEND"`

	// Partitions maps a partition name to a backend name.
	Partitions map[string]string `mapstructure:"PARTITIONS"`

	// DBType and DSN configure the sql backend. DBType is one of sqlite,
	// postgres, mysql.
	DBType string `mapstructure:"DB_TYPE"`
	DSN    string `mapstructure:"DSN"`

	// BcryptCost tunes the password handler. 0 selects the handler default.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TokenKey is the HMAC key of the signed-token handler. The handler is
	// not registered when empty.
	TokenKey string `mapstructure:"TOKEN_KEY"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DEFAULT_REALM", "default")
	viper.SetDefault("DEFAULT_BACKEND", "memory")
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "idmkit.db")
	viper.SetDefault("BCRYPT_COST", 0)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration serving every partition from the
// in-memory backend. Useful for tests and embedded use without
// environment wiring.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		DefaultRealm:   "default",
		DefaultBackend: "memory",
		DBType:         "sqlite",
		DSN:            "idmkit.db",
	}
}

// BackendFor returns the backend name serving the named partition.
func (c *Config) BackendFor(partition string) string {
	if name, ok := c.Partitions[partition]; ok {
		return name
	}
	return c.DefaultBackend
}
