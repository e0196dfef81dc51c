package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONConsole(t *testing.T) {
	// GIVEN: JSON console output at warn level
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.JSON = true
	cfg.Level = "warn"

	log, err := newLogger(cfg, &buf)
	require.NoError(t, err)

	// WHEN: logging below and at the threshold
	log.Info().Msg("dropped")
	log.Warn().Str("week_id", "week-2025-3-3").Msg("kept")

	// THEN: only the warning is written, with the service field
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "week-2025-3-3", entry["week_id"])
	assert.Equal(t, "weekplan", entry["service"])
}

func TestNew_FileOutput(t *testing.T) {
	// GIVEN: a log file in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "logs", "weekplan.log")
	cfg := DefaultConfig()
	cfg.FilePath = path

	log, err := New(cfg)
	require.NoError(t, err)

	// WHEN
	log.Info().Msg("to file")

	// THEN: the file holds the JSON entry
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "chatty"

	_, err := New(cfg)
	assert.Error(t, err)
}
