// Package config layers connection and output settings: defaults, then an
// optional config file, then RETHINKDB_* environment variables, then
// command-line flags bound by the caller.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reqlkit/internal/conn"
)

// EnvPrefix is prepended to every environment key, e.g. RETHINKDB_HOST.
const EnvPrefix = "RETHINKDB"

// Config is the resolved configuration.
type Config struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password_file"`
	DB           string        `mapstructure:"db"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TLS          bool          `mapstructure:"tls"`
	TLSCA        string        `mapstructure:"tls_ca"`
	Format       string        `mapstructure:"format"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
}

var defaults = map[string]interface{}{
	"host":          "localhost",
	"port":          28015,
	"user":          "admin",
	"password":      "",
	"password_file": "",
	"db":            "",
	"timeout":       30 * time.Second,
	"tls":           false,
	"tls_ca":        "",
	"format":        "",
	"log_level":     "warn",
	"log_format":    "text",
}

// New returns a viper instance with defaults and environment lookup set
// up. Flags are bound onto it with BindPFlag before Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// RETHINKDB_DATABASE predates RETHINKDB_DB
	_ = v.BindEnv("db", EnvPrefix+"_DB", EnvPrefix+"_DATABASE")
	return v
}

// Load reads file when non-empty (YAML, TOML or JSON by extension) and
// resolves everything into a Config. The password file, if any, replaces
// the password.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("config: password file: %w", err)
		}
		cfg.Password = strings.TrimSpace(string(data))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Host == "":
		return errors.New("config: host is empty")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.Timeout < 0:
		return fmt.Errorf("config: negative timeout %s", c.Timeout)
	}
	return nil
}

// ConnConfig returns the connection parameters, loading the CA bundle
// when TLS is requested.
func (c *Config) ConnConfig(log *slog.Logger) (conn.Config, error) {
	cc := conn.Config{Host: c.Host, Port: c.Port, User: c.User, Password: c.Password, Logger: log}
	if !c.TLS && c.TLSCA == "" {
		return cc, nil
	}
	tlsCfg := &tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}
	if c.TLSCA != "" {
		pem, err := os.ReadFile(c.TLSCA)
		if err != nil {
			return conn.Config{}, fmt.Errorf("config: tls ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return conn.Config{}, fmt.Errorf("config: tls ca %s: no certificates found", c.TLSCA)
		}
		tlsCfg.RootCAs = pool
	}
	cc.TLS = tlsCfg
	return cc, nil
}
