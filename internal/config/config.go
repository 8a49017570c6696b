package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/kbchat/internal/awsutil"
)

type Config struct {
	Port        int               `json:"port"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	AWS         AWSConfig         `json:"aws"`
	LLM         ModelConfig       `json:"llm"`
	Embedding   ModelConfig       `json:"embedding"`
	VectorIndex VectorIndexConfig `json:"vector_index"`
	Chat        ChatConfig        `json:"chat"`
	Analytics   AnalyticsConfig   `json:"analytics"`
	Corpus      CorpusConfig      `json:"corpus"`
	CORS        []string          `json:"cors"`
}

type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
}

// ModelConfig selects an ai provider and the model it serves. Data is handed to
// the provider factory as-is.
type ModelConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type VectorIndexConfig struct {
	Bucket         string `json:"bucket"`
	Index          string `json:"index"`
	DistanceMetric string `json:"distance_metric"`
	MaxResults     int    `json:"max_results"`
}

type ChatConfig struct {
	DefaultModel       string  `json:"default_model"`
	DefaultTemperature float64 `json:"default_temperature"`
	DefaultMaxTokens   int     `json:"default_max_tokens"`
	MaxQueryTurns      int     `json:"max_query_turns"`
	KBVersion          string  `json:"kb_version"`
}

type AnalyticsConfig struct {
	Table   string `json:"table"`
	TTLDays int    `json:"ttl_days"`
}

type CorpusConfig struct {
	Type              string `json:"type"`
	Dir               string `json:"dir"`
	Bucket            string `json:"bucket"`
	Prefix            string `json:"prefix"`
	ChunkSize         int    `json:"chunk_size"`
	ChunkOverlap      int    `json:"chunk_overlap"`
	BatchSize         int    `json:"batch_size"`
	MetadataTextBytes int    `json:"metadata_text_bytes"`
}

// envBindings maps config keys to the environment variables the deployment
// already sets.
var envBindings = map[string]string{
	"port":                     "PORT",
	"log_config.level":         "LOG_LEVEL",
	"aws.region":               "AWS_REGION",
	"llm.model":                "MODEL_ID",
	"embedding.model":          "BEDROCK_EMBED_MODEL",
	"vector_index.bucket":      "S3_VECTORS_BUCKET",
	"vector_index.index":       "S3_VECTORS_INDEX",
	"vector_index.max_results": "MAX_VECTOR_RESULTS",
	"chat.kb_version":          "KB_VERSION",
	"analytics.table":          "MESSAGES_TABLE",
	"corpus.dir":               "CONTENT_DIR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_config.level", "info")
	v.SetDefault("log_config.console", true)
	v.SetDefault("aws.region", "eu-central-1")
	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("embedding.provider", "bedrock")
	v.SetDefault("embedding.model", "amazon.titan-embed-text-v2:0")
	v.SetDefault("vector_index.bucket", "your-project-dev-vector-bucket")
	v.SetDefault("vector_index.index", "kb-index")
	v.SetDefault("vector_index.distance_metric", "cosine")
	v.SetDefault("vector_index.max_results", 5)
	v.SetDefault("chat.default_model", "claude-3-5-sonnet")
	v.SetDefault("chat.default_temperature", 0.7)
	v.SetDefault("chat.default_max_tokens", 2000)
	v.SetDefault("chat.max_query_turns", 5)
	v.SetDefault("chat.kb_version", "unknown")
	v.SetDefault("analytics.ttl_days", 30)
	v.SetDefault("corpus.type", "local")
	v.SetDefault("corpus.dir", "knowledge-base")
	v.SetDefault("corpus.chunk_size", 500)
	v.SetDefault("corpus.chunk_overlap", 50)
	v.SetDefault("corpus.batch_size", 100)
	v.SetDefault("corpus.metadata_text_bytes", 1000)
}

// Load reads the optional JSON config at path and applies environment
// overrides. An empty path means environment and defaults only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.Corpus.Type = strings.ToLower(strings.TrimSpace(c.Corpus.Type))
	c.VectorIndex.DistanceMetric = strings.ToLower(strings.TrimSpace(c.VectorIndex.DistanceMetric))
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	if c.VectorIndex.MaxResults <= 0 {
		return fmt.Errorf("vector_index.max_results must be positive")
	}
	if c.Chat.MaxQueryTurns <= 0 {
		return fmt.Errorf("chat.max_query_turns must be positive")
	}
	switch c.VectorIndex.DistanceMetric {
	case "cosine", "euclidean":
	default:
		return fmt.Errorf("vector_index.distance_metric must be cosine or euclidean")
	}
	switch c.Corpus.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("corpus.type must be local or s3")
	}
	return nil
}

// ValidateServer checks the settings the chat service cannot start without.
func (c *Config) ValidateServer() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model (MODEL_ID) is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.VectorIndex.Bucket == "" || c.VectorIndex.Index == "" {
		return fmt.Errorf("vector_index.bucket and vector_index.index are required")
	}
	return nil
}

// ValidateIndexer checks the settings the index build cannot run without.
func (c *Config) ValidateIndexer() error {
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model (BEDROCK_EMBED_MODEL) is required")
	}
	if c.VectorIndex.Bucket == "" || c.VectorIndex.Index == "" {
		return fmt.Errorf("vector_index.bucket and vector_index.index are required")
	}
	if c.Corpus.ChunkSize <= 0 || c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		return fmt.Errorf("corpus.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Corpus.BatchSize <= 0 {
		return fmt.Errorf("corpus.batch_size must be positive")
	}
	switch c.Corpus.Type {
	case "local":
		if c.Corpus.Dir == "" {
			return fmt.Errorf("corpus.dir (CONTENT_DIR) is required for local corpus")
		}
	case "s3":
		if c.Corpus.Bucket == "" {
			return fmt.Errorf("corpus.bucket is required for s3 corpus")
		}
	}
	return nil
}

// ProviderArgs returns the factory arguments for a model config, falling back
// to the shared AWS settings when no provider data is configured.
func (c *Config) ProviderArgs(m ModelConfig) interface{} {
	if m.Data != nil {
		return m.Data
	}
	return map[string]interface{}{
		"region":            c.AWS.Region,
		"access_key_id":     c.AWS.AccessKeyID,
		"secret_access_key": c.AWS.SecretAccessKey,
		"session_token":     c.AWS.SessionToken,
	}
}

func (c *Config) AWSOptions() awsutil.Options {
	return awsutil.Options{
		Region:          c.AWS.Region,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		SessionToken:    c.AWS.SessionToken,
	}
}
