package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Config{Level: zerolog.InfoLevel, Timestamp: true}, DefaultConfig(ProfileRuntime))
	assert.Equal(t, Config{Level: zerolog.DebugLevel, NoColor: true}, DefaultConfig(ProfileTest))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{name: "none", env: nil, want: DefaultConfig(ProfileRuntime)},
		{
			name: "all",
			env:  map[string]string{EnvLogLevel: "WARN", EnvLogTimestamp: "false", EnvLogNoColor: "1", EnvLogFormat: "json"},
			want: Config{Level: zerolog.WarnLevel, NoColor: true, JSON: true},
		},
		{
			name: "garbage ignored",
			env:  map[string]string{EnvLogLevel: "loud", EnvLogTimestamp: "maybe"},
			want: DefaultConfig(ProfileRuntime),
		},
		{
			name: "off",
			env:  map[string]string{EnvLogLevel: "off"},
			want: Config{Level: zerolog.Disabled, Timestamp: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig(ProfileRuntime)
			ApplyEnvOverrides(&cfg, env(tt.env))
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestBuildJSONCarriesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithEnv(ProfileTest, &buf, env(map[string]string{EnvLogFormat: "json"}))
	logger.Debug().Str("component", "transport").Int("iteration", 3).Msg("pass finished")

	out := buf.String()
	assert.Contains(t, out, `"app":"mcrt"`)
	assert.Contains(t, out, `"component":"transport"`)
	assert.Contains(t, out, `"iteration":3`)
	assert.NotContains(t, out, `"time"`)
}

func TestBuildConsoleRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Build(Config{Level: zerolog.WarnLevel, NoColor: true}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
