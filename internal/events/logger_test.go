package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)

	logger.WithFields(map[string]interface{}{
		"store": "projects/app/de.json",
		"units": 3,
	}).Info("Store updated")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Store updated", entry["msg"])
	assert.Equal(t, "projects/app/de.json", entry["store"])
	assert.Equal(t, float64(3), entry["units"])
	assert.NotEmpty(t, entry["time"])
}

func TestTextLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "text", &buf)

	logger.WithField("store", "de.json").Warn("Conflict detected")

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "Conflict detected")
	assert.Contains(t, line, "store=de.json")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "text", &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 2, strings.Count(out, "shown"))
}

func TestDerivedLoggersAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	base := New("debug", "json", &buf)

	derived := base.WithField("component", "differ")
	base.Info("base message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["component"]
	assert.False(t, ok, "field must not leak back to the parent")

	buf.Reset()
	derived.WithError(errors.New("boom")).Error("failed")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "differ", entry["component"])
	assert.Equal(t, "boom", entry["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}
