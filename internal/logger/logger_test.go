package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false, "")

	log.Debug("hidden")
	log.Info("document stored", "owner_id", "42")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "document stored", entry["msg"])
	assert.Equal(t, "42", entry["owner_id"])
}

func TestNew_DevWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true, "")

	log.Debug("visible in dev")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), `msg="visible in dev"`)
}
