package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	IndexBackendMemory   = "memory"
	IndexBackendPostgres = "postgres"
)

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type Config struct {
	GeneralCorpusPath string
	FactorCorpusPath  string

	ListenAddr     string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	IndexBackend      string
	TopK              int
	MemoryMaxTurns    int
	CondenseQuestions bool
	SessionTTL        time.Duration

	ResetPhrases   []string
	TriggerPhrases []string

	LLM        LLMConfig
	Embeddings EmbeddingConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	PostgresDSN  string
	GraphEnabled bool
	Neo4jURI     string
	Neo4jUser    string
	Neo4jPass    string
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and the process environment, in increasing precedence.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general_corpus_path", "data/general_qa.json")
	v.SetDefault("factor_corpus_path", "data/factor_groups.json")
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("index_backend", IndexBackendMemory)
	v.SetDefault("retrieval_top_k", 4)
	v.SetDefault("memory_max_turns", 20)
	v.SetDefault("condense_questions", true)
	v.SetDefault("session_ttl", "1h")
	v.SetDefault("reset_phrases", "start over")
	v.SetDefault("trigger_phrases", "help me,i have pain,figure out,my symptoms")
	v.SetDefault("llm_provider", ProviderOllama)
	v.SetDefault("llm_model", "llama3.1:8b")
	v.SetDefault("embeddings_provider", ProviderOllama)
	v.SetDefault("embeddings_model", "nomic-embed-text")
	v.SetDefault("embeddings_dimension", 768)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("postgres_dsn", "postgres://localhost:5432/symptom-agent?sslmode=disable")
	v.SetDefault("graph_enabled", false)
	v.SetDefault("neo4j_uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j_username", "neo4j")
	v.SetDefault("neo4j_password", "password")
}

func fromViper(v *viper.Viper) Config {
	return Config{
		GeneralCorpusPath: v.GetString("general_corpus_path"),
		FactorCorpusPath:  v.GetString("factor_corpus_path"),
		ListenAddr:        v.GetString("listen_addr"),
		AllowedOrigins:    splitList(v.GetString("cors_allowed_origins")),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
		IndexBackend:      strings.ToLower(v.GetString("index_backend")),
		TopK:              v.GetInt("retrieval_top_k"),
		MemoryMaxTurns:    v.GetInt("memory_max_turns"),
		CondenseQuestions: v.GetBool("condense_questions"),
		SessionTTL:        v.GetDuration("session_ttl"),
		ResetPhrases:      splitList(v.GetString("reset_phrases")),
		TriggerPhrases:    splitList(v.GetString("trigger_phrases")),
		LLM: LLMConfig{
			Provider: strings.ToLower(v.GetString("llm_provider")),
			Model:    v.GetString("llm_model"),
		},
		Embeddings: EmbeddingConfig{
			Provider:  strings.ToLower(v.GetString("embeddings_provider")),
			Model:     v.GetString("embeddings_model"),
			Dimension: v.GetInt("embeddings_dimension"),
		},
		OllamaHost:    v.GetString("ollama_host"),
		OpenAIAPIKey:  v.GetString("openai_api_key"),
		OpenAIBaseURL: v.GetString("openai_base_url"),
		PostgresDSN:   v.GetString("postgres_dsn"),
		GraphEnabled:  v.GetBool("graph_enabled"),
		Neo4jURI:      v.GetString("neo4j_uri"),
		Neo4jUser:     v.GetString("neo4j_username"),
		Neo4jPass:     v.GetString("neo4j_password"),
	}
}

// Validate reports the first setting that would prevent startup.
func (c Config) Validate() error {
	if !knownProvider(c.LLM.Provider) {
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	if !knownProvider(c.Embeddings.Provider) {
		return fmt.Errorf("unknown embedding provider: %s", c.Embeddings.Provider)
	}
	switch c.IndexBackend {
	case IndexBackendMemory, IndexBackendPostgres:
	default:
		return fmt.Errorf("unknown index backend: %s", c.IndexBackend)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("retrieval top-k must be positive, got %d", c.TopK)
	}
	if c.MemoryMaxTurns < 0 {
		return fmt.Errorf("memory max turns cannot be negative, got %d", c.MemoryMaxTurns)
	}
	if c.IndexBackend == IndexBackendPostgres && c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive for the postgres backend")
	}
	if strings.TrimSpace(c.GeneralCorpusPath) == "" || strings.TrimSpace(c.FactorCorpusPath) == "" {
		return fmt.Errorf("both corpus paths must be set")
	}
	return nil
}

func knownProvider(p string) bool {
	return p == ProviderOllama || p == ProviderOpenAI
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
