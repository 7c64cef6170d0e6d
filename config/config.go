package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Carspire service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Seed      SeedConfig      `yaml:"seed"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxInFlight    int           `yaml:"max_in_flight"`
	RateLimit      int           `yaml:"rate_limit"` // requests per client IP per window, 0 disables
	RateWindow     time.Duration `yaml:"rate_window"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// StoreConfig holds knowledge store configuration.
type StoreConfig struct {
	Path      string `yaml:"path"`      // relative paths resolve against the project dir
	Ephemeral bool   `yaml:"ephemeral"` // keep knowledge in memory only
}

// ChunkConfig holds chunking configuration.
type ChunkConfig struct {
	MaxChars      int `yaml:"max_chars"`
	MinLearnChars int `yaml:"min_learn_chars"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK               int           `yaml:"top_k"`
	MaxTopK            int           `yaml:"max_top_k"`
	ContextTokenBudget int           `yaml:"context_token_budget"` // 0 = unbounded
	CacheSize          int           `yaml:"cache_size"`           // 0 = no query cache
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"` // LRU of query embeddings, 0 = off
}

// ChatConfig holds language model configuration.
type ChatConfig struct {
	Provider     string        `yaml:"provider"` // "openai", "deepseek", "ollama", "echo"
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// SeedConfig holds first-run seeding configuration.
type SeedConfig struct {
	Path     string   `yaml:"path"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Watch    bool     `yaml:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5174,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:5174"},
			RequestTimeout: 60 * time.Second,
			MaxInFlight:    30,
			RateLimit:      30,
			RateWindow:     time.Minute,
			MaxBodyBytes:   3 << 20,
		},
		Store: StoreConfig{
			Path: filepath.Join(".carspire", "knowledge.db"),
		},
		Chunk: ChunkConfig{
			MaxChars:      900,
			MinLearnChars: 10,
		},
		Retrieve: RetrieveConfig{
			TopK:               5,
			MaxTopK:            50,
			ContextTokenBudget: 3000,
			CacheSize:          256,
			CacheTTL:           5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
			Timeout:   60 * time.Second,
			CacheSize: 1024,
		},
		Chat: ChatConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.5,
			Timeout:     60 * time.Second,
		},
		Seed: SeedConfig{
			Path:     filepath.Join("seed", "cars_seed.md"),
			Includes: []string{"**/*.md", "**/*.txt", "**/*.pdf"},
			Excludes: []string{"**/.git/**", "**/node_modules/**"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// LoadFromDir loads `.env` and then configuration from dir (carspire.yaml
// or .carspire/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	if err := LoadEnv(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "carspire.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".carspire", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads dir/.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Chunk.MaxChars <= 0 {
		return fmt.Errorf("chunk.max_chars must be positive, got %d", c.Chunk.MaxChars)
	}
	if c.Chunk.MinLearnChars < 0 {
		return fmt.Errorf("chunk.min_learn_chars must not be negative, got %d", c.Chunk.MinLearnChars)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.MaxTopK < c.Retrieve.TopK {
		return fmt.Errorf("retrieve.max_top_k (%d) must be at least top_k (%d)", c.Retrieve.MaxTopK, c.Retrieve.TopK)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Chat.Provider {
	case "openai", "deepseek", "ollama", "echo":
	default:
		return fmt.Errorf("unknown chat provider %q", c.Chat.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// StorePath resolves the knowledge store location against dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// SeedPath resolves the seed location against dir.
func (c *Config) SeedPath(dir string) string {
	if filepath.IsAbs(c.Seed.Path) {
		return c.Seed.Path
	}
	return filepath.Join(dir, c.Seed.Path)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
