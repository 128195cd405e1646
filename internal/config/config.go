package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// IntentRules maps a classifier label (or "default") to a profile name
// (§4.5 IntentClassifier rules).
type IntentRules map[string]string

// ClassifierConfig configures the "auto" routing classifier (§4.5).
type ClassifierConfig struct {
	Enabled          bool        `yaml:"enabled" json:"enabled"`
	ClassifierURL    string      `yaml:"classifier_url" json:"classifier_url"`
	ClassifierModel  string      `yaml:"classifier_model" json:"classifier_model"`
	ClassifierAPIKey string      `yaml:"classifier_api_key" json:"classifier_api_key"`
	Rules            IntentRules `yaml:"rules" json:"rules"`
}

// RAGConfig configures §4.9 pass 1 (RAG injection).
type RAGConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	EmbeddingBaseURL string   `yaml:"embedding_base_url" json:"embedding_base_url"`
	EmbeddingModel   string   `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingAPIKey  string   `yaml:"embedding_api_key" json:"embedding_api_key"`
	Directories      []string `yaml:"directories" json:"directories"`
	ChunkSize        int      `yaml:"chunk_size" json:"chunk_size"`
	TopK             int      `yaml:"top_k" json:"top_k"`
}

// CrossProfileConfig configures §4.9 pass 2 (cross-profile sharing).
type CrossProfileConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	MaxContextSize int  `yaml:"max_context_size" json:"max_context_size"`
}

// CompressionConfig configures §4.9 pass 3 (conversation compression).
type CompressionConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	ThresholdTokens int    `yaml:"threshold_tokens" json:"threshold_tokens"`
	KeepRecent      int    `yaml:"keep_recent" json:"keep_recent"`
	SummarizerURL   string `yaml:"summarizer_url" json:"summarizer_url"`
	SummarizerModel string `yaml:"summarizer_model" json:"summarizer_model"`
	SummarizerKey   string `yaml:"summarizer_key" json:"summarizer_key"`
}

// BreakerConfig configures §4.6 defaults.
type BreakerConfig struct {
	Threshold       int `yaml:"threshold" json:"threshold"`
	RecoverySeconds int `yaml:"recovery_seconds" json:"recovery_seconds"`
}

// Config is the minimal runtime configuration claudex loads. Persistence
// (save/export/"configuration sets") is a named external collaborator and
// out of scope here; we only need enough structure to drive the four cores.
type Config struct {
	Host        string             `yaml:"host" json:"host"`
	Port        int                `yaml:"port" json:"port"`
	Profiles    []*Profile         `yaml:"profiles" json:"profiles"`
	Classifier  ClassifierConfig   `yaml:"classifier" json:"classifier"`
	RAG         RAGConfig          `yaml:"rag" json:"rag"`
	CrossProfile CrossProfileConfig `yaml:"cross_profile" json:"cross_profile"`
	Compression CompressionConfig `yaml:"compression" json:"compression"`
	Breaker     BreakerConfig      `yaml:"breaker" json:"breaker"`
	Debug       bool               `yaml:"debug" json:"debug"`
}

// DefaultBreaker returns the §4.6 defaults (threshold 3, recovery 30s)
// when the config file left the section zero-valued.
func (c *Config) DefaultBreaker() BreakerConfig {
	b := c.Breaker
	if b.Threshold <= 0 {
		b.Threshold = 3
	}
	if b.RecoverySeconds <= 0 {
		b.RecoverySeconds = 30
	}
	return b
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{Host: "127.0.0.1", Port: 8787}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ProfileSet validates and returns the config's profile set.
func (c *Config) ProfileSet() (*ProfileSet, error) {
	return NewProfileSet(c.Profiles)
}
