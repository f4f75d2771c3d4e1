package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"form-rag/internal/models"
)

type Config struct {
	ListenAddr string      `yaml:"listen_addr"`
	Store      StoreConfig `yaml:"store"`
	RAG        RAGConfig   `yaml:"rag"`
	EmbedLLM   LLMConfig   `yaml:"embed_llm"`
	InferLLM   LLMConfig   `yaml:"infer_llm"`
}

// StoreConfig selects and configures the vector index backend.
// Backend is "chromem" (embedded, default) or "postgres" (pgvector).
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	VectorSize int    `yaml:"vector_size"`
	Debug      bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// LLMConfig points at an OpenAI-compatible or Ollama endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":5001"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "chromem"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/vectorstore"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "form_data"
	}
	if c.Store.VectorSize == 0 {
		c.Store.VectorSize = 768
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = models.DefaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = models.DefaultChunkOverlap
	}
	if c.RAG.ConfidenceThreshold == 0 {
		c.RAG.ConfidenceThreshold = models.DefaultConfidenceThreshold
	}
}
