package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/projectsync/internal/config"
)

func TestLevelAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger, err := build(config.LogConfig{Level: "warn"}, false, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger, err = build(config.LogConfig{Level: "warn"}, true, &buf)
	require.NoError(t, err)
	logger.Debug("debugging")
	_ = logger.Sync()
	assert.Contains(t, buf.String(), "debugging")
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projectsync.log")
	var buf bytes.Buffer
	logger, err := build(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, false, &buf)
	require.NoError(t, err)

	logger.Named("channel").Info("connected")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "channel", entry["logger"])
}

func TestBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
