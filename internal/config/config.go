// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every CODEINDEX_* override recognized by
// ApplyEnvOverrides, per spec §6's <PREFIX>_* table.
const envPrefix = "CODEINDEX"

// Config holds global configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "voyage"
	Model    string `yaml:"model"`    // "voyage-4-large"
	APIKey   string `yaml:"-"`        // never persisted to file, env/flag only
}

type StorageConfig struct {
	QdrantURL     string `yaml:"qdrant_url"`
	VectorAPIKey  string `yaml:"-"`
	Neo4jURL      string `yaml:"neo4j_url"` // bolt URL; spec §6 calls this GRAPH_DB_PATH
	RedisURL      string `yaml:"redis_url"`
	CachePassword string `yaml:"-"`
	DatabaseURL   string `yaml:"database_url"` // relstore DSN
	LexicalURL    string `yaml:"lexical_url"`  // bleve lexical index path
}

// RetrievalConfig tunes the §4.9 fusion pipeline.
type RetrievalConfig struct {
	FusionVersion string `yaml:"fusion_version"` // weighted_rrf (default) | correlation_aware
}

// SemanticConfig tunes the §4.4 type-resolution pipeline.
type SemanticConfig struct {
	EnableExternalTyping bool `yaml:"enable_external_typing"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"` // error|warn|info|debug
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// RepoConfig holds per-repository configuration
type RepoConfig struct {
	Name          string            `yaml:"name"`
	DefaultBranch string            `yaml:"default_branch"`
	Modules       map[string]Module `yaml:"modules"`
	Include       []string          `yaml:"include"`
	Exclude       []string          `yaml:"exclude"`
}

type Module struct {
	Description string            `yaml:"description"`
	Submodules  map[string]string `yaml:"submodules"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "voyage",
			Model:    "voyage-4-large",
		},
		Storage: StorageConfig{
			QdrantURL: "http://localhost:6333",
			Neo4jURL:  "bolt://localhost:7687",
			RedisURL:  "redis://localhost:6379",
		},
		Retrieval: RetrievalConfig{
			FusionVersion: "weighted_rrf",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 50,
			MaxFiles:  3,
		},
	}
}

// LoadConfig loads config from file, applies defaults for anything the file
// omits, then lets CODEINDEX_* environment variables override both (§6):
// env always wins over the file, matching the teacher's existing
// env-var-for-secrets convention (VOYAGE_API_KEY, NEO4J_USER/PASSWORD) but
// extended to every externally-tunable field instead of just credentials.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// ApplyEnvOverrides mutates cfg in place for every recognized CODEINDEX_*
// variable that is set, per spec §6. Unset variables leave the existing
// value (file or default) untouched.
func ApplyEnvOverrides(cfg *Config) {
	str := func(suffix string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + "_" + suffix); ok {
			*dst = v
		}
	}
	str("DATABASE_URL", &cfg.Storage.DatabaseURL)
	str("VECTOR_URL", &cfg.Storage.QdrantURL)
	str("VECTOR_API_KEY", &cfg.Storage.VectorAPIKey)
	str("LEXICAL_URL", &cfg.Storage.LexicalURL)
	str("GRAPH_DB_PATH", &cfg.Storage.Neo4jURL)
	str("CACHE_URL", &cfg.Storage.RedisURL)
	str("CACHE_PASSWORD", &cfg.Storage.CachePassword)
	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	str("FUSION_VERSION", &cfg.Retrieval.FusionVersion)
	str("LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := os.LookupEnv(envPrefix + "_ENABLE_EXTERNAL_TYPING"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Semantic.EnableExternalTyping = b
		}
	}
}

// LoadRepoConfig loads .ai-devtools.yaml from repo root
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	path := filepath.Join(repoPath, ".ai-devtools.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		CodeIndex RepoConfig `yaml:"code-index"`
	}

	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}

	return &wrapper.CodeIndex, nil
}
