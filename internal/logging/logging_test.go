package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	out, formatter, level := Logger.Out, Logger.Formatter, Logger.Level
	Logger.SetOutput(&buf)
	t.Cleanup(func() {
		Logger.SetOutput(out)
		Logger.SetFormatter(formatter)
		Logger.SetLevel(level)
	})
	return &buf
}

func TestSetupJSON(t *testing.T) {
	buf := captureOutput(t)
	Setup("warn", "json")

	Logger.Info("dropped")
	Logger.Warnf("Failed to load configuration: %v", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "Failed to load configuration: boom", entry["msg"])
}

func TestSetupFallsBackToTextAndInfo(t *testing.T) {
	buf := captureOutput(t)
	Setup("chatty", "")

	Logger.Debug("dropped")
	Logger.Infof("Granted admin role to %s", "u1")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `msg="Granted admin role to u1"`)
	assert.Contains(t, out, "level=info")
}
