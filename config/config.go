package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig selects the job table backend. Driver is "sqlite" (Path) or "mysql".
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

type QueueConfig struct {
	AnalysisQueue     string `mapstructure:"analysis_queue"`
	MaxWorkers        int    `mapstructure:"max_workers"`
	PopTimeoutSeconds int    `mapstructure:"pop_timeout_seconds"`
}

type UploadConfig struct {
	Dir               string   `mapstructure:"dir"`                // uploaded documents
	MaxSize           int64    `mapstructure:"max_size"`           // bytes
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // e.g. .pdf
	ValidatePDF       bool     `mapstructure:"validate_pdf"`
}

type PipelineConfig struct {
	Provider         string  `mapstructure:"provider"` // openai, anthropic, ollama
	Model            string  `mapstructure:"model"`
	OpenAIAPIKey     string  `mapstructure:"openai_api_key"`
	AnthropicAPIKey  string  `mapstructure:"anthropic_api_key"`
	OllamaHost       string  `mapstructure:"ollama_host"`
	Temperature      float64 `mapstructure:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	MaxRPM           int     `mapstructure:"max_rpm"`
	MaxDocumentChars int     `mapstructure:"max_document_chars"`
	ScratchDir       string  `mapstructure:"scratch_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type CleanupConfig struct {
	Schedule    string `mapstructure:"schedule"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "job_database/analysis_jobs.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("queue.analysis_queue", "document_analysis")
	v.SetDefault("queue.max_workers", 1)
	v.SetDefault("queue.pop_timeout_seconds", 5)

	v.SetDefault("upload.dir", "data")
	v.SetDefault("upload.max_size", 20<<20)
	v.SetDefault("upload.allowed_extensions", []string{".pdf"})
	v.SetDefault("upload.validate_pdf", true)

	v.SetDefault("pipeline.provider", "openai")
	v.SetDefault("pipeline.model", "gpt-4o")
	v.SetDefault("pipeline.ollama_host", "http://localhost:11434")
	v.SetDefault("pipeline.temperature", 0.2)
	v.SetDefault("pipeline.max_tokens", 2048)
	v.SetDefault("pipeline.max_rpm", 10)
	v.SetDefault("pipeline.max_document_chars", 60000)
	v.SetDefault("pipeline.scratch_dir", "outputs")

	v.SetDefault("log.level", "info")

	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})

	v.SetDefault("cleanup.schedule", "@every 1h")
	v.SetDefault("cleanup.expire_hours", 24)
}

func Load(configPath string) (*Config, error) {
	// config.local.yaml 优先（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("pipeline.openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("pipeline.anthropic_api_key", "ANTHROPIC_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults and env.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
