package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	ResetForTest()
	dir := t.TempDir()

	require.NoError(t, LoadConfig(dir))

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultStateDir, cfg.Server.StateDir)
	assert.Equal(t, DefaultUnitTestPath, cfg.Tests.UnitPath)
	assert.Equal(t, SchemaVersion, cfg.Version)

	// The file must exist after first load.
	_, err = os.Stat(filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename))
	assert.NoError(t, err)
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	ResetForTest()
	dir := t.TempDir()
	require.NoError(t, LoadConfig(dir))

	server := ServerConfig{
		Command:         []string{"langgraph", "dev", "--no-browser"},
		StudioBaseURL:   DefaultStudioBaseURL,
		AssistantID:     "optigen",
		StateDir:        ".langgraph_api",
		Port:            3030,
		MetricsPort:     3031,
		BrowserDelaySec: 1,
	}
	require.NoError(t, UpdateServer(&server))

	// Reload from disk and confirm the update persisted.
	ResetForTest()
	require.NoError(t, LoadConfig(dir))
	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 3030, cfg.Server.Port)
	assert.Equal(t, "optigen", cfg.Server.AssistantID)
}

func TestUpdateServer_RejectsInvalid(t *testing.T) {
	ResetForTest()
	require.NoError(t, LoadConfig(t.TempDir()))

	bad := ServerConfig{
		Command:  []string{"langgraph", "dev"},
		StateDir: ".langgraph_api",
		Port:     0, // out of range
	}
	assert.Error(t, UpdateServer(&bad))

	// Port collision between server and metrics endpoint.
	bad.Port = 2024
	bad.MetricsPort = 2024
	assert.Error(t, UpdateServer(&bad))

	// Absolute state dir would let stop delete outside the project.
	bad.MetricsPort = 2025
	bad.StateDir = "/tmp/state"
	assert.Error(t, UpdateServer(&bad))
}

func TestGetConfig_BeforeLoad(t *testing.T) {
	ResetForTest()
	_, err := GetConfig()
	assert.Error(t, err)
}

func TestStudioURL(t *testing.T) {
	s := ServerConfig{
		StudioBaseURL: DefaultStudioBaseURL,
		AssistantID:   "agent",
		Port:          2024,
	}
	assert.Equal(t,
		"https://smith.langchain.com/studio/?apiUrl=http://127.0.0.1:2024&assistantId=agent",
		s.StudioURL())
	assert.Equal(t, "http://127.0.0.1:2024", s.APIBaseURL())
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	ResetForTest()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ProjectConfigDir), 0o755))
	partial := []byte(`{"version":"1.0","server":{"command":["langgraph","dev"],"state_dir":".langgraph_api","port":5000,"metrics_port":5001,"studio_base_url":"https://smith.langchain.com/studio/"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename), partial, 0o644))

	require.NoError(t, LoadConfig(dir))
	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	// Sections absent from the file keep their defaults.
	assert.Equal(t, []string{"uv", "run", "pytest"}, cfg.Tests.Runner)
}
