package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Config is the persisted application configuration: which tools the agent
// may use, which documents and databases those tools may read, and the
// default model settings.
type Config struct {
	DefaultProvider  string            `json:"default_provider"`
	DefaultModel     string            `json:"default_model"`
	ToolToggles      map[string]bool   `json:"tool_toggles"`
	EnabledDocuments []string          `json:"enabled_documents"`
	EnabledDatabases []string          `json:"enabled_databases"`
	DatabaseMappings map[string]string `json:"database_mappings"`
}

func defaultConfig() *Config {
	return &Config{
		ToolToggles: map[string]bool{
			"search_web":         true,
			"document_retrieval": true,
			"sql_retrieval":      true,
			"run_code":           true,
		},
		EnabledDocuments: []string{},
		EnabledDatabases: []string{"employees", "projects"},
		DatabaseMappings: map[string]string{
			"employees": "database/employees.db",
			"projects":  "database/projects.db",
		},
	}
}

// Manager handles configuration persistence. Tool and source toggles are
// read before each retrieval call, so edits take effect on the next turn.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a manager backed by the per-user config file.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".scout")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return NewManagerAt(filepath.Join(configDir, "config.json"))
}

// NewManagerAt creates a manager backed by the given file path.
func NewManagerAt(path string) (*Manager, error) {
	m := &Manager{
		configPath: path,
		config:     defaultConfig(),
	}

	if err := m.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return m, nil
}

// Load reads the configuration from disk, keeping defaults for fields the
// file does not set.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ToolToggles == nil {
		cfg.ToolToggles = defaultConfig().ToolToggles
	}
	if cfg.DatabaseMappings == nil {
		cfg.DatabaseMappings = defaultConfig().DatabaseMappings
	}
	m.config = cfg
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.config, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetDefaultProvider returns the configured provider, defaulting to openai.
func (m *Manager) GetDefaultProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.DefaultProvider == "" {
		return "openai"
	}
	return m.config.DefaultProvider
}

// GetDefaultModel returns the configured model.
func (m *Manager) GetDefaultModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.DefaultModel
}

// SetDefaults updates the default provider and model.
func (m *Manager) SetDefaults(provider, model string) error {
	m.mu.Lock()
	m.config.DefaultProvider = provider
	m.config.DefaultModel = model
	m.mu.Unlock()
	return m.Save()
}

// IsToolEnabled reports whether the named tool is toggled on. Tools not
// present in the config default to enabled.
func (m *Manager) IsToolEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enabled, ok := m.config.ToolToggles[name]
	return !ok || enabled
}

// SetToolEnabled persists a tool toggle. It applies from the next turn.
func (m *Manager) SetToolEnabled(name string, enabled bool) error {
	m.mu.Lock()
	m.config.ToolToggles[name] = enabled
	m.mu.Unlock()
	return m.Save()
}

// EnabledDocuments returns the documents the retrieval tool may read.
func (m *Manager) EnabledDocuments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.config.EnabledDocuments)
}

// SetEnabledDocuments replaces the enabled document list.
func (m *Manager) SetEnabledDocuments(docs []string) error {
	m.mu.Lock()
	m.config.EnabledDocuments = slices.Clone(docs)
	m.mu.Unlock()
	return m.Save()
}

// IsDocumentEnabled reports whether a document may be read. An empty
// enabled list means all ingested documents are readable.
func (m *Manager) IsDocumentEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.config.EnabledDocuments) == 0 {
		return true
	}
	return slices.Contains(m.config.EnabledDocuments, name)
}

// EnabledDatabases returns name -> file path for the databases the SQL
// tool may query, filtered by the enabled list.
func (m *Manager) EnabledDatabases() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enabled := make(map[string]string)
	for _, name := range m.config.EnabledDatabases {
		if path, ok := m.config.DatabaseMappings[name]; ok {
			enabled[name] = path
		}
	}
	return enabled
}

// SetEnabledDatabases replaces the enabled database list.
func (m *Manager) SetEnabledDatabases(names []string) error {
	m.mu.Lock()
	m.config.EnabledDatabases = slices.Clone(names)
	m.mu.Unlock()
	return m.Save()
}

// DatabasePath returns the file path registered for a database name.
func (m *Manager) DatabasePath(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.config.DatabaseMappings[name]
	return path, ok
}

// SetDatabaseMapping registers or updates a database name -> path mapping.
func (m *Manager) SetDatabaseMapping(name, path string) error {
	m.mu.Lock()
	m.config.DatabaseMappings[name] = path
	m.mu.Unlock()
	return m.Save()
}
