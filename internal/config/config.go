package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Storage StorageConfig
	Groq    GroqConfig
	OCR     OCRConfig
	CORS    CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `env:"PORT"                    env-default:"4000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"    env-default:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES"        env-default:"26214400"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// StorageConfig locates the database file and uploaded PDFs.
type StorageConfig struct {
	DatabasePath string `env:"DATABASE_PATH" env-default:"./data/study-buddy.db"`
	UploadDir    string `env:"UPLOAD_DIR"    env-default:"./uploads"`
}

// GroqConfig configures the text-generation endpoint. An empty key disables
// generation features.
type GroqConfig struct {
	APIKey  string        `env:"GROQ_API_KEY"`
	BaseURL string        `env:"GROQ_BASE_URL"      env-default:"https://api.groq.com/openai/v1"`
	Model   string        `env:"GROQ_MODEL"         env-default:"llama-3.1-8b-instant"`
	Timeout time.Duration `env:"GENERATION_TIMEOUT" env-default:"60s"`
}

// OCRConfig configures the vision model used to read images. An empty key
// disables OCR.
type OCRConfig struct {
	APIKey  string `env:"OCR_API_KEY"`
	BaseURL string `env:"OCR_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `env:"OCR_MODEL"    env-default:"gpt-4o-mini"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	MaxAge         int    `env:"CORS_MAX_AGE"         env-default:"86400"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads configuration from the environment, providing sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be > 0 (got %d)", c.Server.MaxUploadBytes)
	}
	if c.Groq.Timeout <= 0 {
		return errors.New("generation timeout must be > 0")
	}
	if c.Log.Format != "json" && c.Log.Format != "pretty" {
		return fmt.Errorf("log format must be json or pretty (got %q)", c.Log.Format)
	}
	if c.Storage.DatabasePath == "" || c.Storage.UploadDir == "" {
		return errors.New("database path and upload dir are required")
	}
	return nil
}

// EnsureDirs creates the upload directory and the database's parent directory.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Storage.UploadDir, 0o755); err != nil {
		return fmt.Errorf("ensure upload dir %s: %w", c.Storage.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Storage.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("ensure database dir %s: %w", c.Storage.DatabasePath, err)
	}
	return nil
}
