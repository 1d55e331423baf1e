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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/forensicanalysis/browserartifacts/timestamp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{"defaults", "", nil, func(t *testing.T, cfg *Config) {
			assert.Equal(t, "browser.forensicstore", cfg.Output)
			assert.Equal(t, "info", cfg.LogLevel)
			assert.GreaterOrEqual(t, cfg.Workers, 1)
			assert.Equal(t, timestamp.DefaultFutureSlack, cfg.Timestamp.FutureSlack)
			assert.Equal(t, "1990-01-01", cfg.Timestamp.Earliest)
		}, false},
		{"file", "workers: 3\noutput: case.forensicstore\ntimestamp:\n  earliest: \"2000-01-01\"\n  future_slack: 48h\n", nil, func(t *testing.T, cfg *Config) {
			assert.Equal(t, 3, cfg.Workers)
			assert.Equal(t, "case.forensicstore", cfg.Output)
			assert.Equal(t, 48*time.Hour, cfg.Timestamp.FutureSlack)
		}, false},
		{"env overrides file", "workers: 3\n", map[string]string{
			"BROWSERARTIFACTS_WORKERS":                "5",
			"BROWSERARTIFACTS_TIMESTAMP_FUTURE_SLACK": "1h",
		}, func(t *testing.T, cfg *Config) {
			assert.Equal(t, 5, cfg.Workers)
			assert.Equal(t, time.Hour, cfg.Timestamp.FutureSlack)
		}, false},
		{"zero workers", "workers: 0\n", nil, nil, true},
		{"bad earliest", "timestamp:\n  earliest: yesterday\n", nil, nil, true},
		{"bad level", "log_level: loud\n", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.config != "" {
				path = writeConfig(t, tt.config)
			}
			cfg, err := Load(New(), path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Normalizer(t *testing.T) {
	cfg := &Config{Timestamp: Timestamp{Earliest: "2021-01-01", FutureSlack: time.Hour}}
	n, err := cfg.Normalizer()
	require.NoError(t, err)
	n.Now = func() time.Time { return time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC) }

	got, err := n.Convert(timestamp.UnixSeconds, int64(1617280496))
	require.NoError(t, err)
	assert.Equal(t, timestamp.Instant(1617280496000000), got)

	_, err = n.Convert(timestamp.UnixSeconds, int64(1577836800)) // 2020-01-01
	assert.Error(t, err)

	_, err = n.Convert(timestamp.UnixSeconds, int64(1625097600)) // 2021-07-01
	assert.Error(t, err)
}

func TestConfig_Level(t *testing.T) {
	level, err := (&Config{LogLevel: "debug"}).Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}
