package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	SessionBackendMemory   = "memory"
	SessionBackendDynamoDB = "dynamodb"

	// DefaultLogMode is used before the environment has been parsed.
	DefaultLogMode = "production"
)

// Config holds every runtime setting. It is parsed only by the entry points
// and passed down explicitly.
type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"production"`

	SessionBackend string `env:"SESSION_BACKEND" envDefault:"dynamodb"`
	StateTable     string `env:"STATE_TABLE"`
	TicketTable    string `env:"TICKET_TABLE"`
	ParamPrefix    string `env:"PARAM_PREFIX"`

	DBHost     string        `env:"DB_HOST" envDefault:"localhost:3306"`
	DBName     string        `env:"DB_NAME" envDefault:"shop_db"`
	DBUser     string        `env:"DB_USER" envDefault:"root"`
	DBPassword string        `env:"DB_PASSWORD"`
	DBTimeout  time.Duration `env:"DB_TIMEOUT" envDefault:"5s"`

	LLMBaseURL string        `env:"LLM_BASE_URL" envDefault:"https://open.bigmodel.cn/api/paas/v4"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"glm-4-flashx"`
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	MaxSteps          int           `env:"MAX_STEPS" envDefault:"12"`
	MaxToolRounds     int           `env:"MAX_TOOL_ROUNDS" envDefault:"4"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`
	MaxTurns          int           `env:"MAX_TURNS" envDefault:"50"`
	AttributeCacheTTL time.Duration `env:"ATTRIBUTE_CACHE_TTL" envDefault:"10m"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without validating it, so callers can
// override fields before calling Validate.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.LogMode = strings.ToLower(strings.TrimSpace(c.LogMode))
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
}

// Validate checks cross-field requirements env tags cannot express.
func (c *Config) Validate() error {
	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendDynamoDB:
		if strings.TrimSpace(c.StateTable) == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb session backend")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.LLMAPIKey == "" && c.ParamPrefix == "" {
		return errors.New("config: either LLM_API_KEY or PARAM_PREFIX must be set")
	}
	if c.MaxSteps <= 0 || c.MaxToolRounds <= 0 {
		return errors.New("config: MAX_STEPS and MAX_TOOL_ROUNDS must be positive")
	}
	if c.MaxTurns <= 0 {
		return errors.New("config: MAX_TURNS must be positive")
	}
	return nil
}

// LLMTokenParameter is the SSM parameter holding the model API token.
func (c *Config) LLMTokenParameter() string {
	return c.ParamPrefix + "/llm-token"
}

// DBPasswordParameter is the SSM parameter holding the database password.
func (c *Config) DBPasswordParameter() string {
	return c.ParamPrefix + "/db-password"
}
