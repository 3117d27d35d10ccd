package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
// 所有数值在 Load 时一次性解析并校验，非法取值直接启动失败，
// 避免在调用点做防御性类型转换
type Config struct {
	Env         string
	DatabaseURL string
	Port        string

	// 推荐引擎配置
	TopK                int
	SimilarityThreshold float64
	EmbeddingCacheSize  int
	QueryCacheSize      int
	QueryCacheTTL       time.Duration
	ProbeCount          int // ANN 查询探测的聚类数（nprobe）
	ListCount           int // ANN 倒排表数量（nlist）
	EmbeddingDim        int
	ANNEnabled          bool // 关闭时退化为全量余弦相似度

	// 嵌入服务配置
	EmbeddingProvider string // ollama / openai
	EmbeddingTimeout  time.Duration
	OllamaHost        string
	OllamaModel       string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
}

// Load 加载并校验配置
func Load() (*Config, error) {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "mediarec")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		DatabaseURL:       dbURL,
		Port:              getEnv("PORT", "5005"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "all-minilm"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "text-embedding-3-small"),
	}

	var err error
	if cfg.TopK, err = getEnvInt("TOP_K", 10); err != nil {
		return nil, err
	}
	if cfg.SimilarityThreshold, err = getEnvFloat("SIMILARITY_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.EmbeddingCacheSize, err = getEnvInt("EMBEDDING_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.QueryCacheSize, err = getEnvInt("QUERY_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	ttlSeconds, err := getEnvInt("QUERY_CACHE_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cfg.QueryCacheTTL = time.Duration(ttlSeconds) * time.Second
	if cfg.ProbeCount, err = getEnvInt("ANN_PROBE_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.ListCount, err = getEnvInt("ANN_LIST_COUNT", 100); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim, err = getEnvInt("EMBEDDING_DIMENSION", 384); err != nil {
		return nil, err
	}
	timeoutSeconds, err := getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.EmbeddingTimeout = time.Duration(timeoutSeconds) * time.Second
	if cfg.ANNEnabled, err = getEnvBool("ANN_ENABLED", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate 启动期校验，失败即退出
func (c *Config) validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K 必须为正数，当前值: %d", c.TopK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD 必须在 [0,1] 之间，当前值: %v", c.SimilarityThreshold)
	}
	if c.EmbeddingCacheSize <= 0 || c.QueryCacheSize <= 0 {
		return fmt.Errorf("缓存容量必须为正数")
	}
	if c.QueryCacheTTL <= 0 {
		return fmt.Errorf("QUERY_CACHE_TTL_SECONDS 必须为正数")
	}
	if c.ProbeCount <= 0 || c.ListCount <= 0 {
		return fmt.Errorf("ANN_PROBE_COUNT / ANN_LIST_COUNT 必须为正数")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION 必须为正数，当前值: %d", c.EmbeddingDim)
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT_SECONDS 必须为正数")
	}
	switch c.EmbeddingProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("不支持的嵌入服务: %s", c.EmbeddingProvider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s 不是合法整数: %q", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s 不是合法浮点数: %q", key, value)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s 不是合法布尔值: %q", key, value)
	}
	return b, nil
}
