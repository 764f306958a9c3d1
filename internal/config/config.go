// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server ServerConfig
	LLM    LLMConfig
	OCR    OCRConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// LLMConfig holds AI provider settings. Provider is "openai" for any
// chat-completions compatible endpoint, or "gemini" for the genai SDK.
type LLMConfig struct {
	Provider  string
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string
	Endpoint  string
	Timeout   time.Duration
}

// OCRConfig holds the external text-extraction service settings.
type OCRConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Load reads configuration from file and env. Env var overrides use prefix
// FINPARSE_, e.g. FINPARSE_LLM_API_KEY.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_upload_bytes", int64(16<<20))
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("ocr.endpoint", "")
	v.SetDefault("ocr.timeout", "30s")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FINPARSE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "finparse"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FINPARSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Resolve the API key from its env var when not set directly.
	if c.LLM.APIKey == "" && c.LLM.APIKeyEnv != "" {
		c.LLM.APIKey = os.Getenv(c.LLM.APIKeyEnv)
	}

	return c, nil
}
