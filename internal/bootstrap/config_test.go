package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setAzureEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setAzureEnv(t)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.ServerAddr)
	}
	if cfg.FrameCount != 5 || cfg.FrameHeight != 480 {
		t.Errorf("unexpected frame defaults %d/%d", cfg.FrameCount, cfg.FrameHeight)
	}
	if cfg.LLMTimeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.LLMTimeout)
	}
	if cfg.RedisAddr != "" || cfg.DatabaseDSN != "" {
		t.Error("redis and database should be disabled by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setAzureEnv(t)
	t.Setenv("PORT", "5000")
	t.Setenv("FRAME_COUNT", "8")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("FRAME_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerAddr != ":5000" {
		t.Errorf("expected PORT to set :5000, got %s", cfg.ServerAddr)
	}
	if cfg.FrameCount != 8 {
		t.Errorf("expected 8 frames, got %d", cfg.FrameCount)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Errorf("expected 15s, got %v", cfg.LLMTimeout)
	}
	if cfg.FrameTimeout != 2*time.Minute {
		t.Errorf("invalid duration should keep default, got %v", cfg.FrameTimeout)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm_provider: ollama
ollama_url: http://ollama:11434
ollama_model: llava:13b
frame_count: 3
frame_timeout: 45s
redis_addr: redis:6379
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("FRAME_COUNT", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLMProvider != ProviderOllama || cfg.OllamaModel != "llava:13b" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.FrameTimeout != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.FrameTimeout)
	}
	if cfg.FrameCount != 4 {
		t.Errorf("env should override file, got %d", cfg.FrameCount)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("expected redis addr from file, got %q", cfg.RedisAddr)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected azure credentials to be required")
	}
	if !strings.Contains(err.Error(), "AZURE_OPENAI_API_KEY") {
		t.Errorf("expected missing key in error, got %v", err)
	}

	cfg.LLMProvider = "bedrock"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown LLM_PROVIDER") {
		t.Errorf("expected unknown provider error, got %v", err)
	}

	cfg.LLMProvider = ProviderOllama
	cfg.FrameCount = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "FRAME_COUNT") {
		t.Errorf("expected frame count error, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "warn": "WARN", "error": "ERROR", "": "INFO", "verbose": "INFO"}
	for in, want := range cases {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
