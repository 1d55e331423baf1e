/*
 * Copyright (c) 2021 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

// Package config loads the settings of the command line tool from defaults,
// an optional YAML file and BROWSERARTIFACTS_ environment variables.
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// EnvPrefix is the prefix of environment variables, e.g. BROWSERARTIFACTS_WORKERS.
const EnvPrefix = "BROWSERARTIFACTS"

// Config holds all settings.
type Config struct {
	Workers     int       `mapstructure:"workers"`
	TempDir     string    `mapstructure:"temp_dir"`
	MaxMemory   int64     `mapstructure:"max_memory"`
	Output      string    `mapstructure:"output"`
	Archive     bool      `mapstructure:"archive"`
	MetricsFile string    `mapstructure:"metrics_file"`
	LogLevel    string    `mapstructure:"log_level"`
	Timestamp   Timestamp `mapstructure:"timestamp"`
}

// Timestamp configures the plausibility window of normalized timestamps.
type Timestamp struct {
	Earliest    string        `mapstructure:"earliest"`
	FutureSlack time.Duration `mapstructure:"future_slack"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("temp_dir", "")
	v.SetDefault("max_memory", 32<<20)
	v.SetDefault("output", "browser.forensicstore")
	v.SetDefault("archive", false)
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("timestamp.earliest", timestamp.DefaultEarliest.Format("2006-01-02"))
	v.SetDefault("timestamp.future_slack", timestamp.DefaultFutureSlack)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the result. Without an
// explicit path .browserartifacts.yaml is looked up in the working and the
// home directory; a missing file is not an error then.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "could not read config")
		}
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".browserartifacts")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "could not read config")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxMemory < 0 {
		return errors.Errorf("max_memory must not be negative, got %d", c.MaxMemory)
	}
	if c.Timestamp.FutureSlack < 0 {
		return errors.Errorf("timestamp.future_slack must not be negative, got %s", c.Timestamp.FutureSlack)
	}
	if _, err := c.earliest(); err != nil {
		return err
	}
	_, err := c.Level()
	return err
}

func (c *Config) earliest() (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, c.Timestamp.Earliest); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid timestamp.earliest %q", c.Timestamp.Earliest)
}

// Level returns the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	return level, errors.Wrap(err, "invalid log_level")
}

// Normalizer returns a timestamp normalizer with the configured window.
func (c *Config) Normalizer() (*timestamp.Normalizer, error) {
	earliest, err := c.earliest()
	if err != nil {
		return nil, err
	}
	n := timestamp.NewNormalizer()
	n.Earliest = earliest
	n.FutureSlack = c.Timestamp.FutureSlack
	return n, nil
}
