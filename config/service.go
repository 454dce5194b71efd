package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	coreerrors "sqlnexus/core/errors"
)

// Service persists Config to a JSON file under a storage directory, notifies
// registered callbacks on change, and applies defaults on load, generalized
// from a single flat struct to the nested Config above.
type Service struct {
	storageDir string
	logger     func(string)
	callbacks  []func(Config)
	mu         sync.RWMutex
}

// NewService creates a Service. logger may be nil.
func NewService(logger func(string)) *Service {
	return &Service{logger: logger}
}

func (s *Service) log(msg string) {
	if s.logger != nil {
		s.logger(msg)
	}
}

// SetStorageDir overrides the default storage directory (primarily for
// tests).
func (s *Service) SetStorageDir(dir string) {
	s.mu.Lock()
	s.storageDir = dir
	s.mu.Unlock()
}

// StorageDir returns the directory config.json lives in, defaulting to
// ~/.sqlnexus.
func (s *Service) StorageDir() (string, error) {
	s.mu.RLock()
	dir := s.storageDir
	s.mu.RUnlock()
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", coreerrors.Wrap("config", "StorageDir", err)
	}
	return filepath.Join(home, ".sqlnexus"), nil
}

func (s *Service) configPath() (string, error) {
	dir, err := s.StorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads config.json from disk, returning Default() when it does not
// yet exist.
func (s *Service) Load() (Config, error) {
	path, err := s.configPath()
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, coreerrors.Wrap("config", "Load", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, coreerrors.Wrap("config", "Load", err)
	}
	cfg.Validate()
	return cfg, nil
}

// Save validates and persists cfg, then notifies every registered callback.
// The file is written 0600 since it may carry an LLM API key.
func (s *Service) Save(cfg Config) error {
	cfg.Validate()

	dir, err := s.StorageDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return coreerrors.Wrap("config", "Save", fmt.Errorf("failed to create storage dir: %w", err))
	}

	path := filepath.Join(dir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return coreerrors.Wrap("config", "Save", fmt.Errorf("failed to marshal config: %w", err))
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return coreerrors.Wrap("config", "Save", fmt.Errorf("failed to write config file: %w", err))
	}

	s.log("configuration saved to disk")
	s.notify(cfg)
	return nil
}

// OnChange registers a callback invoked after every successful Save.
func (s *Service) OnChange(cb func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

func (s *Service) notify(cfg Config) {
	s.mu.RLock()
	cbs := make([]func(Config), len(s.callbacks))
	copy(cbs, s.callbacks)
	s.mu.RUnlock()
	for _, cb := range cbs {
		cb(cfg)
	}
}
