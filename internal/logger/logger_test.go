package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `"loud"`)
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := New(&buf, Config{Level: "debug", Format: "json"})
	require.NoError(t, err)

	log.Debug("wire out", "token", 3)
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "wire out", rec["msg"])
	assert.Equal(t, float64(3), rec["token"])
}

func TestNew_TextFiltersLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := New(&buf, Config{Level: "warn"})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.Contains(buf.String(), "msg=shown"))
}

func TestNew_BadConfig(t *testing.T) {
	t.Parallel()
	_, err := New(&bytes.Buffer{}, Config{Format: "xml"})
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, Config{Level: "trace"})
	assert.Error(t, err)
}
