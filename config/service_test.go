package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestService_Load_MissingFileReturnsDefault(t *testing.T) {
	svc := NewService(nil)
	svc.SetStorageDir(t.TempDir())

	cfg, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != "OpenAI" {
		t.Errorf("Provider = %q, want default %q", cfg.LLM.Provider, "OpenAI")
	}
	if cfg.General.MaxRetryAttempts != 3 {
		t.Errorf("MaxRetryAttempts = %d, want 3", cfg.General.MaxRetryAttempts)
	}
}

func TestService_SaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(nil)
	svc.SetStorageDir(dir)

	cfg := Default()
	cfg.LLM.Provider = "Anthropic"
	cfg.LLM.APIKey = "sk-test"
	cfg.RAG.TopK = 5

	if err := svc.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.LLM.Provider != "Anthropic" || got.LLM.APIKey != "sk-test" || got.RAG.TopK != 5 {
		t.Errorf("round-tripped config = %+v, want Provider=Anthropic APIKey=sk-test TopK=5", got)
	}

	path := filepath.Join(dir, "config.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config.json mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestService_Save_NotifiesCallbacks(t *testing.T) {
	svc := NewService(nil)
	svc.SetStorageDir(t.TempDir())

	var received Config
	calls := 0
	svc.OnChange(func(c Config) {
		calls++
		received = c
	})

	cfg := Default()
	cfg.LLM.ModelName = "gpt-4.1"
	if err := svc.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if received.LLM.ModelName != "gpt-4.1" {
		t.Errorf("callback received ModelName = %q, want %q", received.LLM.ModelName, "gpt-4.1")
	}
}

func TestConfig_Validate_ClampsInvalidValues(t *testing.T) {
	cfg := Config{}
	cfg.Validate()
	if cfg.LLM.MaxTokens != 6000 {
		t.Errorf("MaxTokens = %d, want 6000", cfg.LLM.MaxTokens)
	}
	if cfg.RAG.SimilarityThreshold != 0.7 {
		t.Errorf("SimilarityThreshold = %v, want 0.7", cfg.RAG.SimilarityThreshold)
	}
	if cfg.General.QueryTimeoutSeconds != 300 {
		t.Errorf("QueryTimeoutSeconds = %d, want 300", cfg.General.QueryTimeoutSeconds)
	}
}
