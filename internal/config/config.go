package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string   `mapstructure:"PORT"`
	Env                    string   `mapstructure:"ENV"`
	LogLevel               string   `mapstructure:"LOG_LEVEL"`
	CORSOrigins            []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit              string   `mapstructure:"BODY_LIMIT"`
	KeywordTablePath       string   `mapstructure:"KEYWORD_TABLE_PATH"`
	LargeDocumentThreshold int      `mapstructure:"LARGE_DOCUMENT_THRESHOLD"`
	CompressionRatio       float64  `mapstructure:"COMPRESSION_RATIO"`
	MaxEvidenceLines       int      `mapstructure:"MAX_EVIDENCE_LINES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "5M")
	v.SetDefault("KEYWORD_TABLE_PATH", "") // empty -> embedded table
	v.SetDefault("LARGE_DOCUMENT_THRESHOLD", 50000)
	v.SetDefault("COMPRESSION_RATIO", 0.6)
	v.SetDefault("MAX_EVIDENCE_LINES", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("KEYWORD_TABLE_PATH")
	v.BindEnv("LARGE_DOCUMENT_THRESHOLD")
	v.BindEnv("COMPRESSION_RATIO")
	v.BindEnv("MAX_EVIDENCE_LINES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the scoring and reduction settings are usable.
func (c *Config) Validate() error {
	if c.LargeDocumentThreshold <= 0 {
		return fmt.Errorf("LARGE_DOCUMENT_THRESHOLD must be positive, got %d", c.LargeDocumentThreshold)
	}
	if c.CompressionRatio <= 0 || c.CompressionRatio > 1 {
		return fmt.Errorf("COMPRESSION_RATIO must be in (0,1], got %v", c.CompressionRatio)
	}
	if c.MaxEvidenceLines < 1 {
		return fmt.Errorf("MAX_EVIDENCE_LINES must be at least 1, got %d", c.MaxEvidenceLines)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a recognised level", c.LogLevel)
	}
	if c.IsProduction() && len(c.CORSOrigins) == 1 && c.CORSOrigins[0] == "*" {
		return fmt.Errorf("CORS_ORIGINS must not be \"*\" in production")
	}
	return nil
}
