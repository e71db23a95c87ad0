// Package config provides configuration loading, validation, and management
// for agentdev.
//
// The project config is a JSON file at .agentdev/config.json holding the
// workflow knobs: dev-server port, state directory, studio URL, test paths,
// and the argv of every external tool. A single
// global Config instance is maintained in memory, protected by mutex.
// GetConfig() returns the config BY VALUE; all updates go through the
// Update* functions, which validate and persist atomically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"agentdev/pkg/logx"
)

// Project config constants.
const (
	ProjectConfigDir      = ".agentdev"
	ProjectConfigFilename = "config.json"
	SchemaVersion         = "1.0"
)

// Defaults for a standard LangGraph agent project layout.
const (
	DefaultServerPort      = 2024
	DefaultMetricsPort     = 2025
	DefaultStateDir        = ".langgraph_api"
	DefaultStudioBaseURL   = "https://smith.langchain.com/studio/"
	DefaultAssistantID     = "agent"
	DefaultBrowserDelaySec = 2
	DefaultUnitTestPath    = "tests/unit_tests"
	DefaultIntegrationPath = "tests/integration_tests"
)

// ServerConfig holds dev-server lifecycle settings.
type ServerConfig struct {
	Command         []string `json:"command"`           // dev server argv, run in the foreground
	StudioBaseURL   string   `json:"studio_base_url"`   // hosted UI; apiUrl/assistantId are appended
	AssistantID     string   `json:"assistant_id"`      // assistantId query parameter
	StateDir        string   `json:"state_dir"`         // checkpoint/state directory removed by stop
	Port            int      `json:"port"`              // local API port the dev server binds
	MetricsPort     int      `json:"metrics_port"`      // agentdev status/metrics endpoint during start
	BrowserDelaySec int      `json:"browser_delay_sec"` // fallback delay before opening the browser
}

// TestConfig holds test dispatch settings.
type TestConfig struct {
	Runner          []string `json:"runner"`           // test runner argv prefix
	WatchRunner     []string `json:"watch_runner"`     // argv rerun on each change in watch mode
	ProfileFlags    []string `json:"profile_flags"`    // appended for test_profile
	ExtendedFlags   []string `json:"extended_flags"`   // appended for extended_tests
	UnitPath        string   `json:"unit_path"`        // default TEST_FILE
	IntegrationPath string   `json:"integration_path"` // integration suite path
}

// ToolsConfig holds the argv of each lint/format/spell tool invocation.
type ToolsConfig struct {
	LintCheck   []string `json:"lint_check"`
	FormatCheck []string `json:"format_check"`
	TypeCheck   []string `json:"type_check"`
	Format      []string `json:"format"`
	LintFix     []string `json:"lint_fix"`
	SpellCheck  []string `json:"spell_check"`
	SpellFix    []string `json:"spell_fix"`
}

// Config is the root project configuration.
type Config struct {
	Version string       `json:"version"` // schema version
	Server  ServerConfig `json:"server"`
	Tests   TestConfig   `json:"tests"`
	Tools   ToolsConfig  `json:"tools"`
}

// Global config instance with mutex protection. projectDir is set once
// during LoadConfig and never changes.
//
//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config     *Config
	projectDir string
	logger     *logx.Logger
	mu         sync.RWMutex
)

// getLogger returns the config logger, initializing it if needed.
func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// LogInfo logs an info message using the config logger.
// Exposed so main can use consistent logging before other packages are up.
func LogInfo(format string, args ...interface{}) {
	getLogger().Info(format, args...)
}

// DefaultConfig returns a config populated with the toolchain defaults of a
// LangGraph agent project managed with uv.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Server: ServerConfig{
			Command:         []string{"langgraph", "dev", "--no-browser"},
			StudioBaseURL:   DefaultStudioBaseURL,
			AssistantID:     DefaultAssistantID,
			StateDir:        DefaultStateDir,
			Port:            DefaultServerPort,
			MetricsPort:     DefaultMetricsPort,
			BrowserDelaySec: DefaultBrowserDelaySec,
		},
		Tests: TestConfig{
			Runner:          []string{"uv", "run", "pytest"},
			WatchRunner:     []string{"uv", "run", "pytest", "--snapshot-update"},
			ProfileFlags:    []string{"--profile-svg"},
			ExtendedFlags:   []string{"--only-extended"},
			UnitPath:        DefaultUnitTestPath,
			IntegrationPath: DefaultIntegrationPath,
		},
		Tools: ToolsConfig{
			LintCheck:   []string{"uv", "run", "ruff", "check", "."},
			FormatCheck: []string{"uv", "run", "ruff", "format", "--check", "."},
			TypeCheck:   []string{"uv", "run", "mypy", "--strict", "."},
			Format:      []string{"uv", "run", "ruff", "format", "."},
			LintFix:     []string{"uv", "run", "ruff", "check", "--fix", "."},
			SpellCheck:  []string{"uv", "run", "codespell", "--toml", "pyproject.toml"},
			SpellFix:    []string{"uv", "run", "codespell", "--toml", "pyproject.toml", "-w"},
		},
	}
}

// LoadConfig loads the project config from dir, creating it with defaults
// when absent. Must be called once at startup before GetConfig.
func LoadConfig(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	projectDir = dir
	path := filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		config = DefaultConfig()
		if saveErr := saveConfigLocked(); saveErr != nil {
			return fmt.Errorf("failed to persist default config: %w", saveErr)
		}
		getLogger().Info("Created default config at %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	loaded := DefaultConfig() // absent fields keep their defaults
	if err := json.Unmarshal(data, loaded); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	config = loaded
	return nil
}

// GetConfig returns a copy of the current config.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return Config{}, fmt.Errorf("config not loaded - call LoadConfig first")
	}
	return *config, nil
}

// UpdateServer atomically validates, applies, and persists a new server config.
func UpdateServer(server *ServerConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if config == nil {
		return fmt.Errorf("config not loaded - call LoadConfig first")
	}

	candidate := *config
	candidate.Server = *server
	if err := validateConfig(&candidate); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	config = &candidate
	return saveConfigLocked()
}

// saveConfigLocked persists the current config. Caller must hold mu.
func saveConfigLocked() error {
	dir := filepath.Join(projectDir, ProjectConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ProjectConfigFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// validateConfig rejects configs that cannot drive the task runner.
func validateConfig(c *Config) error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("metrics port must differ from server port")
	}
	if len(c.Server.Command) == 0 {
		return fmt.Errorf("server command cannot be empty")
	}
	if c.Server.StateDir == "" {
		return fmt.Errorf("state dir cannot be empty")
	}
	if filepath.IsAbs(c.Server.StateDir) {
		return fmt.Errorf("state dir must be relative to the project root")
	}
	if len(c.Tests.Runner) == 0 {
		return fmt.Errorf("test runner cannot be empty")
	}
	if c.Tests.UnitPath == "" || c.Tests.IntegrationPath == "" {
		return fmt.Errorf("test paths cannot be empty")
	}
	for name, argv := range map[string][]string{
		"lint_check":   c.Tools.LintCheck,
		"format_check": c.Tools.FormatCheck,
		"type_check":   c.Tools.TypeCheck,
		"format":       c.Tools.Format,
		"lint_fix":     c.Tools.LintFix,
		"spell_check":  c.Tools.SpellCheck,
		"spell_fix":    c.Tools.SpellFix,
	} {
		if len(argv) == 0 {
			return fmt.Errorf("tool command %s cannot be empty", name)
		}
	}
	return nil
}

// StudioURL builds the hosted UI URL pointing at the local API endpoint.
func (s *ServerConfig) StudioURL() string {
	return fmt.Sprintf("%s?apiUrl=http://127.0.0.1:%d&assistantId=%s",
		s.StudioBaseURL, s.Port, s.AssistantID)
}

// APIBaseURL returns the local dev-server base URL.
func (s *ServerConfig) APIBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port)
}

// ResetForTest clears the singleton so tests can reload from a temp dir.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	config = nil
	projectDir = ""
}
