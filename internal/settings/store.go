package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

var (
	_ addon.SettingsStore = (*FileStore)(nil)
	_ addon.SettingsStore = (*MemoryStore)(nil)
)

// FileStore is a SettingsStore backed by a YAML document whose top-level keys are option names.
// Reads are safe while Load swaps in a new document.
// NOTE: Use NewFileStore to create a FileStore.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	logger  hclog.Logger
	options map[string]any
}

// NewFileStore creates a store for the YAML file at path. Call Load before use.
func NewFileStore(path string, logger hclog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, ErrNoSettingsFile
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &FileStore{
		path:    path,
		logger:  logger.Named("settings"),
		options: make(map[string]any),
	}, nil
}

// Load reads the settings file and replaces the current options.
// On error the previously loaded options stay in place.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	options := make(map[string]any)
	if err := yaml.Unmarshal(data, &options); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	s.mu.Lock()
	s.options = options
	s.mu.Unlock()

	s.logger.Debug("settings loaded", "path", s.path, "options", len(options))

	return nil
}

// Option returns the value stored under key.
func (s *FileStore) Option(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.options[key]
	return v, ok
}

// MemoryStore is an in-process SettingsStore, mainly for tests and embedding.
type MemoryStore struct {
	mu      sync.RWMutex
	options map[string]any
}

// NewMemoryStore returns a store seeded with a copy of options.
func NewMemoryStore(options map[string]any) *MemoryStore {
	m := &MemoryStore{options: make(map[string]any, len(options))}
	for k, v := range options {
		m.options[k] = v
	}
	return m
}

// Option returns the value stored under key.
func (m *MemoryStore) Option(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.options[key]
	return v, ok
}

// Set stores value under key.
func (m *MemoryStore) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[key] = value
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.options, key)
}
