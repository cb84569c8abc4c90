package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Gemini    GeminiConfig
	Generator GeneratorConfig
	Server    ServerConfig
	Log       LogConfig
}

// GeminiConfig は Gemini API への接続設定
type GeminiConfig struct {
	APIKey   string
	Model    string
	ProxyURL string // 空の場合はプロキシを使わない
	Timeout  time.Duration
}

// GeneratorConfig は生成処理の既定値
type GeneratorConfig struct {
	OutputDir   string
	Resolution  string
	AspectRatio string
	MaxAttempts int
	RetryDelay  time.Duration
}

// ServerConfig は HTTP サーバーの設定
type ServerConfig struct {
	Addr         string
	UploadDir    string // 参照画像アップロードの一時保存先（空ならOSの一時ディレクトリ）
	MaxUploadMiB int64
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("GEMINI_MODEL", "gemini-3-pro-image-preview"),
			ProxyURL: getEnv("GEMINI_PROXY_URL", ""),
			Timeout:  getDuration("GEMINI_TIMEOUT", 5*time.Minute),
		},
		Generator: GeneratorConfig{
			OutputDir:   getEnv("OUTPUT_DIR", ""),
			Resolution:  getEnv("DEFAULT_RESOLUTION", "2K"),
			AspectRatio: getEnv("DEFAULT_ASPECT_RATIO", "16:9"),
			MaxAttempts: getEnvAsInt("MAX_ATTEMPTS", 3),
			RetryDelay:  getDuration("RETRY_DELAY", 5*time.Second),
		},
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", "127.0.0.1:7860"),
			UploadDir:    getEnv("UPLOAD_DIR", ""),
			MaxUploadMiB: int64(getEnvAsInt("MAX_UPLOAD_MIB", 64)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します
func (c *Config) Validate() error {
	if c.Generator.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be >= 1: %d", c.Generator.MaxAttempts)
	}
	if c.Generator.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY must not be negative: %s", c.Generator.RetryDelay)
	}
	if c.Server.MaxUploadMiB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MIB must be positive: %d", c.Server.MaxUploadMiB)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
