package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings such as "5s" or "1500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type PersonaConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type IngestConfig struct {
	Inputs []string `yaml:"inputs"`
}

type ScrubConfig struct {
	Threshold     float64  `yaml:"threshold"`
	DetectTimeout Duration `yaml:"detectTimeout"`
}

type ChunkConfig struct {
	MaxTokens        int `yaml:"maxTokens"`
	MinResponseChars int `yaml:"minResponseChars"`
	Workers          int `yaml:"workers"`
}

type LeakageConfig struct {
	NGram     int     `yaml:"ngram"`
	Backend   string  `yaml:"backend"` // "exact" or "bloom"
	ErrorRate float64 `yaml:"errorRate"`
}

type RetrievalConfig struct {
	TopK         int      `yaml:"topK"`
	EmbedTimeout Duration `yaml:"embedTimeout"`
	BuildWorkers int      `yaml:"buildWorkers"`
	CacheSize    int      `yaml:"cacheSize"`
	PromptShots  int      `yaml:"promptShots"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hashing" or "ollama"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"baseURL"`
	Dimension int    `yaml:"dimension"`
}

type EvaluationConfig struct {
	FunctionWords []string `yaml:"functionWords"`
	TopFunctionN  int      `yaml:"topFunctionWords"`
}

type StorageConfig struct {
	Workspace string `yaml:"workspace"`
	Database  string `yaml:"database"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ConsentConfig struct {
	Required bool   `yaml:"required"`
	File     string `yaml:"file"`
}

type Config struct {
	Persona    PersonaConfig    `yaml:"persona"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Scrub      ScrubConfig      `yaml:"scrub"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Leakage    LeakageConfig    `yaml:"leakage"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Logger     LoggerConfig     `yaml:"logger"`
	Consent    ConsentConfig    `yaml:"consent"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Consent.Required = true
	return cfg
}

// Load reads a YAML file, fills unset values with defaults and applies
// TWIN_* environment overrides.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{Consent: ConsentConfig{Required: true}}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Persona.Name == "" {
		c.Persona.Name = "Digital Twin"
	}
	if c.Scrub.Threshold == 0 {
		c.Scrub.Threshold = 0.5
	}
	if c.Scrub.DetectTimeout == 0 {
		c.Scrub.DetectTimeout = Duration(5 * time.Second)
	}
	if c.Chunk.MaxTokens == 0 {
		c.Chunk.MaxTokens = 400
	}
	if c.Leakage.NGram == 0 {
		c.Leakage.NGram = 12
	}
	if c.Leakage.Backend == "" {
		c.Leakage.Backend = "exact"
	}
	if c.Leakage.ErrorRate == 0 {
		c.Leakage.ErrorRate = 0.001
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.EmbedTimeout == 0 {
		c.Retrieval.EmbedTimeout = Duration(10 * time.Second)
	}
	if c.Retrieval.BuildWorkers == 0 {
		c.Retrieval.BuildWorkers = 4
	}
	if c.Retrieval.CacheSize == 0 {
		c.Retrieval.CacheSize = 1024
	}
	if c.Retrieval.PromptShots == 0 {
		c.Retrieval.PromptShots = 3
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hashing"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 256
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Evaluation.TopFunctionN == 0 {
		c.Evaluation.TopFunctionN = 50
	}
	if c.Storage.Workspace == "" {
		c.Storage.Workspace = "."
	}
	if c.Storage.Database == "" {
		c.Storage.Database = filepath.Join(c.Storage.Workspace, "data", "corpus.db")
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Consent.File == "" {
		c.Consent.File = filepath.Join(c.Storage.Workspace, "consent.yaml")
	}
}

func (c *Config) applyEnv() {
	c.Persona.Name = getenvString("TWIN_PERSONA_NAME", c.Persona.Name)
	c.Scrub.Threshold = getenvFloat("TWIN_SCRUB_THRESHOLD", c.Scrub.Threshold)
	c.Chunk.MaxTokens = getenvInt("TWIN_MAX_CHUNK_TOKENS", c.Chunk.MaxTokens)
	c.Chunk.Workers = getenvInt("TWIN_WORKERS", c.Chunk.Workers)
	c.Leakage.NGram = getenvInt("TWIN_LEAK_NGRAM", c.Leakage.NGram)
	c.Retrieval.TopK = getenvInt("TWIN_RAG_TOP_K", c.Retrieval.TopK)
	c.Embedding.Provider = getenvString("TWIN_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getenvString("TWIN_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = getenvString("TWIN_OLLAMA_BASE_URL", c.Embedding.BaseURL)
	c.Logger.Level = getenvString("TWIN_LOG_LEVEL", c.Logger.Level)
	c.Consent.Required = getenvBool("TWIN_CONSENT_REQUIRED", c.Consent.Required)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Scrub.Threshold < 0 || c.Scrub.Threshold > 1 {
		errs = append(errs, fmt.Errorf("scrub.threshold must be within [0,1], got %v", c.Scrub.Threshold))
	}
	if c.Chunk.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("chunk.maxTokens must be >= 1, got %d", c.Chunk.MaxTokens))
	}
	if c.Chunk.MinResponseChars < 0 {
		errs = append(errs, fmt.Errorf("chunk.minResponseChars must be >= 0, got %d", c.Chunk.MinResponseChars))
	}
	if c.Leakage.NGram < 1 {
		errs = append(errs, fmt.Errorf("leakage.ngram must be >= 1, got %d", c.Leakage.NGram))
	}
	switch c.Leakage.Backend {
	case "exact", "bloom":
	default:
		errs = append(errs, fmt.Errorf("leakage.backend must be exact or bloom, got %q", c.Leakage.Backend))
	}
	if c.Leakage.ErrorRate <= 0 || c.Leakage.ErrorRate >= 1 {
		errs = append(errs, fmt.Errorf("leakage.errorRate must be within (0,1), got %v", c.Leakage.ErrorRate))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.topK must be >= 1, got %d", c.Retrieval.TopK))
	}
	switch c.Embedding.Provider {
	case "hashing", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be hashing or ollama, got %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 1 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be >= 1, got %d", c.Embedding.Dimension))
	}
	return errors.Join(errs...)
}

func getenvString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func getenvInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}
