package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := ParseLevel("loud")
	require.False(t, ok)
	_, ok = ParseLevel("")
	require.False(t, ok)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "JSON")
	t.Setenv(EnvLogNoColor, "true")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnv(&cfg)
	require.Equal(t, zerolog.ErrorLevel, cfg.Level)
	require.Equal(t, FormatJSON, cfg.Format)
	require.True(t, cfg.NoColor)
}

func TestApplyEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv(EnvLogLevel, "very")
	t.Setenv(EnvLogFormat, "xml")
	t.Setenv(EnvLogNoColor, "maybe")

	cfg := DefaultConfig(ProfileTest)
	ApplyEnv(&cfg)
	require.Equal(t, DefaultConfig(ProfileTest), cfg)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "matregd", Config{Level: zerolog.InfoLevel, Format: FormatJSON})
	logger.Debug().Msg("hidden")
	logger.Info().Str("op", "register-material").Msg("committed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "matregd", line["app"])
	require.Equal(t, "register-material", line["op"])
	require.Equal(t, "committed", line["message"])
}
