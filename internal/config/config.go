// Package config provides configuration loading and structs for the carebook server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chatbot   ChatbotConfig   `yaml:"chatbot"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and locates the record store.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "file" (flat JSON/text records).
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	// DataDir holds the flat-file records when Backend is "file".
	DataDir string `yaml:"data_dir"`
	// UploadDir is the root for per-patient prescription uploads.
	UploadDir string `yaml:"upload_dir"`
}

// KnowledgeConfig locates and tunes the medical reference knowledge base.
type KnowledgeConfig struct {
	// DocumentPath is the medical reference document (txt, md, pdf, or docx).
	DocumentPath string `yaml:"document_path"`
	// ChunkSize and ChunkOverlap are in words.
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	// Watch reloads the knowledge base when the document file changes.
	Watch *bool `yaml:"watch"`
}

// WatchOrDefault returns whether to watch the document; defaults to true.
func (k *KnowledgeConfig) WatchOrDefault() bool {
	if k.Watch != nil {
		return *k.Watch
	}
	return true
}

// EmbeddingConfig holds ONNX embedder settings. An empty ModelPath disables
// the embedder; retrieval then falls back to the lexical chunk index.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// ChatbotConfig tunes the retrieval-augmented answerer.
type ChatbotConfig struct {
	// TopK is how many nearest chunks are retrieved per question.
	TopK int `yaml:"top_k"`
	// MinScore is the extractive-QA confidence cutoff. Candidates at or
	// below it are discarded. Nil means the 0.1 default; an explicit 0
	// disables filtering.
	MinScore *float64 `yaml:"min_score"`
	// QAEndpoint is an optional HTTP question-answering service. Empty
	// means the built-in lexical extractor.
	QAEndpoint       string `yaml:"qa_endpoint"`
	QATimeoutSeconds int    `yaml:"qa_timeout_seconds"`
}

// MinScoreOrDefault returns the QA confidence cutoff.
func (c *ChatbotConfig) MinScoreOrDefault() float64 {
	if c.MinScore != nil {
		return *c.MinScore
	}
	return 0.1
}

// AuthConfig holds session-token settings.
type AuthConfig struct {
	// JWTSecret signs session tokens (HS256).
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTLMinutes is the session token lifetime.
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
	// DoctorIDs are patient IDs granted the doctor role at login.
	DoctorIDs []string `yaml:"doctor_ids"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Knowledge.DocumentPath = expandPath(cfg.Knowledge.DocumentPath, configDir)
	cfg.Knowledge.BleveIndexPath = expandPath(cfg.Knowledge.BleveIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
