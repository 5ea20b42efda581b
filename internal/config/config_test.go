package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
storage:
  backend: file
  data_dir: ./records
knowledge:
  document_path: ./knowledge.txt
  chunk_size: 120
chatbot:
  top_k: 5
  min_score: 0.25
auth:
  jwt_secret: testsecret
  doctor_ids:
    - D100
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Debug {
		t.Error("expected debug to be true")
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Knowledge.ChunkSize != 120 {
		t.Errorf("Knowledge.ChunkSize = %d, want 120", cfg.Knowledge.ChunkSize)
	}
	if cfg.Chatbot.TopK != 5 {
		t.Errorf("Chatbot.TopK = %d, want 5", cfg.Chatbot.TopK)
	}
	if got := cfg.Chatbot.MinScoreOrDefault(); got != 0.25 {
		t.Errorf("MinScoreOrDefault() = %v, want 0.25", got)
	}
	if len(cfg.Auth.DoctorIDs) != 1 || cfg.Auth.DoctorIDs[0] != "D100" {
		t.Errorf("Auth.DoctorIDs = %v, want [D100]", cfg.Auth.DoctorIDs)
	}

	// Paths relative to config dir get expanded.
	if !filepath.IsAbs(cfg.Storage.DataDir) {
		t.Errorf("Storage.DataDir = %q, want absolute", cfg.Storage.DataDir)
	}
	if !strings.HasPrefix(cfg.Knowledge.DocumentPath, dir) {
		t.Errorf("Knowledge.DocumentPath = %q, want under %q", cfg.Knowledge.DocumentPath, dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want localhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Knowledge.ChunkSize != 200 {
		t.Errorf("Knowledge.ChunkSize = %d, want 200", cfg.Knowledge.ChunkSize)
	}
	if cfg.Chatbot.TopK != 3 {
		t.Errorf("Chatbot.TopK = %d, want 3", cfg.Chatbot.TopK)
	}
	if got := cfg.Chatbot.MinScoreOrDefault(); got != 0.1 {
		t.Errorf("MinScoreOrDefault() = %v, want 0.1", got)
	}
	if !cfg.Knowledge.WatchOrDefault() {
		t.Error("WatchOrDefault() = false, want true")
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("Embedding.Dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
}

func TestMinScoreExplicitZero(t *testing.T) {
	zero := 0.0
	cfg := &Config{Chatbot: ChatbotConfig{MinScore: &zero}}
	ApplyDefaults(cfg)
	if got := cfg.Chatbot.MinScoreOrDefault(); got != 0 {
		t.Errorf("MinScoreOrDefault() = %v, want 0 when explicitly set", got)
	}
}

func TestExpandPath(t *testing.T) {
	if got := expandPath("/abs/path", "/cfg"); got != "/abs/path" {
		t.Errorf("expandPath absolute = %q", got)
	}
	if got := expandPath("./rel", "/cfg"); got != filepath.Join("/cfg", "rel") {
		t.Errorf("expandPath relative = %q", got)
	}
}
