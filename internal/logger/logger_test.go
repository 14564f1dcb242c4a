package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
)

func TestLogPathsFallbacks(t *testing.T) {
	info, errPath := logPaths(&config.Config{})
	assert.Equal(t, filepath.Join("./logs", "app.log"), info)
	assert.Equal(t, filepath.Join("./logs", "app.error.log"), errPath)

	info, errPath = logPaths(&config.Config{
		LogDirectory:  "/var/log/pods",
		LogOutputFile: "engine.log",
		LogErrorFile:  "engine.error.log",
	})
	assert.Equal(t, "/var/log/pods/engine.log", info)
	assert.Equal(t, "/var/log/pods/engine.error.log", errPath)
}

func TestNewWritesToConfiguredFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := New(&config.Config{LogDirectory: dir})
	require.NoError(t, err)

	m.Info().Print("engine started")
	m.Error().Print("engine stumbled")
	require.NoError(t, m.Close())

	info, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "engine started")

	errLog, err := os.ReadFile(filepath.Join(dir, "app.error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "engine stumbled")
}
