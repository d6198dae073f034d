package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

type Config struct {
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	LLMProvider      string        `yaml:"llm_provider"`
	Azure            AzureConfig   `yaml:"azure"`
	OllamaURL        string        `yaml:"ollama_url"`
	OllamaModel      string        `yaml:"ollama_model"`
	LLMTimeout       time.Duration `yaml:"llm_timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`

	ScratchDir   string        `yaml:"scratch_dir"`
	FrameCount   int           `yaml:"frame_count"`
	FrameHeight  int           `yaml:"frame_height"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	FFprobePath  string        `yaml:"ffprobe_path"`

	MaxUploadSize   string `yaml:"max_upload_size"`
	MaxInlineBytes  int    `yaml:"max_inline_bytes"`
	MaxInlineHeight int    `yaml:"max_inline_height"`

	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	LiveSequenceTTL time.Duration `yaml:"live_sequence_ttl"`

	DatabaseDSN string `yaml:"database_dsn"`

	StaticDir string `yaml:"static_dir"`
}

const (
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

func defaultConfig() *Config {
	return &Config{
		ServerAddr: ":8080",
		LogLevel:   "info",
		LogFormat:  "json",

		LLMProvider:      ProviderAzure,
		Azure:            AzureConfig{APIVersion: "2024-02-15-preview"},
		OllamaURL:        "http://localhost:11434",
		OllamaModel:      "llava",
		LLMTimeout:       60 * time.Second,
		MaxResponseBytes: 1 << 20,

		ScratchDir:   filepath.Join(os.TempDir(), "vision-backend"),
		FrameCount:   5,
		FrameHeight:  480,
		FrameTimeout: 2 * time.Minute,
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",

		MaxUploadSize:   "100M",
		MaxInlineHeight: 480,

		LiveSequenceTTL: 10 * time.Minute,

		StaticDir: "./static",
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.ServerAddr = ":" + port
	}
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.Azure.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT", c.Azure.Endpoint)
	c.Azure.APIKey = getEnv("AZURE_OPENAI_API_KEY", c.Azure.APIKey)
	c.Azure.Deployment = getEnv("AZURE_OPENAI_DEPLOYMENT", c.Azure.Deployment)
	c.Azure.APIVersion = getEnv("AZURE_OPENAI_API_VERSION", c.Azure.APIVersion)
	c.OllamaURL = getEnv("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = getEnv("OLLAMA_MODEL", c.OllamaModel)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.MaxResponseBytes = int64(getEnvInt("MAX_RESPONSE_BYTES", int(c.MaxResponseBytes)))

	c.ScratchDir = getEnv("SCRATCH_DIR", c.ScratchDir)
	c.FrameCount = getEnvInt("FRAME_COUNT", c.FrameCount)
	c.FrameHeight = getEnvInt("FRAME_HEIGHT", c.FrameHeight)
	c.FrameTimeout = getEnvDuration("FRAME_TIMEOUT", c.FrameTimeout)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)

	c.MaxUploadSize = getEnv("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.MaxInlineBytes = getEnvInt("MAX_INLINE_BYTES", c.MaxInlineBytes)
	c.MaxInlineHeight = getEnvInt("MAX_INLINE_HEIGHT", c.MaxInlineHeight)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.LiveSequenceTTL = getEnvDuration("LIVE_SEQUENCE_TTL", c.LiveSequenceTTL)

	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)

	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderAzure:
		if c.Azure.Endpoint == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_ENDPOINT is required"))
		}
		if c.Azure.APIKey == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_API_KEY is required"))
		}
		if c.Azure.Deployment == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_DEPLOYMENT is required"))
		}
	case ProviderOllama:
		if c.OllamaURL == "" || c.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_URL and OLLAMA_MODEL are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.FrameCount <= 0 {
		errs = append(errs, errors.New("FRAME_COUNT must be positive"))
	}
	if c.FrameHeight <= 0 {
		errs = append(errs, errors.New("FRAME_HEIGHT must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
