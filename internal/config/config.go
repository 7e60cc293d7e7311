package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor MODERATION_CONFIG is set.
const DefaultPath = "configs/config.yml"

// PathEnv overrides the config file location.
const PathEnv = "MODERATION_CONFIG"

// Config holds application configuration
type Config struct {
	Server struct {
		Port         string        `yaml:"port" default:"8080"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		CORSOrigin   string        `yaml:"cors_origin" default:"*"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"` // "console" or "json"
	} `yaml:"log"`

	Classifier ClassifierConfig `yaml:"classifier"`

	Storage struct {
		Driver string `yaml:"driver" default:"memory"` // "memory", "sqlite" or "postgres"
		DSN    string `yaml:"dsn" default:":memory:"`
	} `yaml:"storage"`

	Compliance struct {
		Enabled bool     `yaml:"enabled" default:"true"`
		Rules   []string `yaml:"rules"`
	} `yaml:"compliance"`

	Comments struct {
		MaxLength int `yaml:"max_length" default:"500"`
	} `yaml:"comments"`

	Moderator struct {
		Password     string        `yaml:"password"`
		PasswordHash string        `yaml:"password_hash"`
		JWTSecret    string        `yaml:"jwt_secret"`
		TokenTTL     time.Duration `yaml:"token_ttl" default:"12h"`
	} `yaml:"moderator"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

// ClassifierConfig selects and configures the content-safety provider
type ClassifierConfig struct {
	Provider    string        `yaml:"provider" default:"walled"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	ModelName   string        `yaml:"model_name"`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	UnsafeTerms []string      `yaml:"unsafe_terms"` // stub provider only
}

var knownProviders = map[string]bool{
	"walled":     true,
	"groq":       true,
	"openrouter": true,
	"gemini":     true,
	"stub":       true,
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := &Config{}
	defaults.SetDefaults(config)

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Secrets are referenced as ${VAR} in the file and never stored in it.
	config.Classifier.APIKey = os.ExpandEnv(config.Classifier.APIKey)
	config.Moderator.Password = os.ExpandEnv(config.Moderator.Password)
	config.Moderator.PasswordHash = os.ExpandEnv(config.Moderator.PasswordHash)
	config.Moderator.JWTSecret = os.ExpandEnv(config.Moderator.JWTSecret)
	config.Telegram.BotToken = os.ExpandEnv(config.Telegram.BotToken)
	config.Storage.DSN = os.ExpandEnv(config.Storage.DSN)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports configuration values the service cannot start with.
func (c *Config) Validate() error {
	if !knownProviders[c.Classifier.Provider] {
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive, got %s", c.Classifier.Timeout)
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.DSN == "" || c.Storage.DSN == ":memory:" {
			return fmt.Errorf("postgres storage requires storage.dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Moderator.TokenTTL <= 0 {
		return fmt.Errorf("moderator token_ttl must be positive, got %s", c.Moderator.TokenTTL)
	}
	if c.Comments.MaxLength <= 0 {
		return fmt.Errorf("comments max_length must be positive, got %d", c.Comments.MaxLength)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram enabled but bot_token or chat_id is missing")
	}
	return nil
}

// ResolvePath picks the config file location: explicit flag, then env, then default.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(PathEnv); env != "" {
		return env
	}
	return DefaultPath
}
