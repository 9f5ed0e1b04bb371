// Package config layers sqlsiphon settings from defaults, a YAML config
// file, SQLSIPHON_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SQLSIPHON"

// Config holds the settings shared by every command.
type Config struct {
	Threads     int
	Timeout     time.Duration
	Rate        float64
	Proxy       string
	UserAgent   string
	RandomAgent bool
	Session     string
	Batch       bool
	Verbose     int
	Technique   string
	TimeSec     int
	Tamper      string
	StoreBlind  bool
	Direct      string
	DBMS        string

	// File is the config file that was read, if any.
	File string
}

// Keys lists the settings Load reads.
var Keys = []string{
	"threads", "timeout", "rate", "proxy", "user-agent", "random-agent",
	"session", "batch", "verbose", "technique", "time-sec", "tamper",
	"store-blind", "direct", "dbms",
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("threads", 1)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("rate", 0.0)
	v.SetDefault("time-sec", 5)
	v.SetDefault("technique", "BEUST")
	v.SetDefault("verbose", 0)
}

// BindFlags binds every key that has a flag of the same name in fs.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range Keys {
		f := fs.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the config file and environment into v and returns the
// merged settings. file selects the config file; when empty,
// sqlsiphon.yaml is searched in the working directory and in
// $HOME/.sqlsiphon, and a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("sqlsiphon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sqlsiphon")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	cfg := &Config{
		Threads:     v.GetInt("threads"),
		Timeout:     v.GetDuration("timeout"),
		Rate:        v.GetFloat64("rate"),
		Proxy:       v.GetString("proxy"),
		UserAgent:   v.GetString("user-agent"),
		RandomAgent: v.GetBool("random-agent"),
		Session:     v.GetString("session"),
		Batch:       v.GetBool("batch"),
		Verbose:     v.GetInt("verbose"),
		Technique:   v.GetString("technique"),
		TimeSec:     v.GetInt("time-sec"),
		Tamper:      v.GetString("tamper"),
		StoreBlind:  v.GetBool("store-blind"),
		Direct:      v.GetString("direct"),
		DBMS:        v.GetString("dbms"),
		File:        v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Threads < 1:
		return fmt.Errorf("config: threads must be at least 1, got %d", c.Threads)
	case c.Timeout <= 0:
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	case c.Rate < 0:
		return fmt.Errorf("config: rate must not be negative, got %g", c.Rate)
	case c.TimeSec < 1:
		return fmt.Errorf("config: time-sec must be at least 1, got %d", c.TimeSec)
	}
	return nil
}
