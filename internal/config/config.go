package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// BaseURL prefixes the continuation links sent to approved applicants.
		BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"postgres"`
	Forms struct {
		TTL                 string `yaml:"ttl"`
		ConditionPrecedence string `yaml:"condition_precedence" validate:"omitempty,oneof=legacy list"`
	} `yaml:"forms"`
	Intake struct {
		CurrentGroup *int64 `yaml:"current_group"`
		ResultTTL    string `yaml:"result_ttl"`
	} `yaml:"intake"`
	Scoring struct {
		BaseURL         string `yaml:"base_url" validate:"omitempty,url"`
		APIKey          string `yaml:"api_key"`
		Model           string `yaml:"model"`
		ModerationModel string `yaml:"moderation_model"`
		Timeout         string `yaml:"timeout"`
		Parallelism     int    `yaml:"parallelism" validate:"gte=0,lte=32"`
	} `yaml:"scoring"`
	Queue struct {
		Name     string `yaml:"name"`
		MaxRetry int    `yaml:"max_retry" validate:"gte=0"`
	} `yaml:"queue"`
	Grading struct {
		RunTTL string `yaml:"run_ttl"`
	} `yaml:"grading"`
}

// Load reads YAML config from path, applies environment overrides and
// validates the result. A missing file leaves only defaults and environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("config %s not found, using environment only", path)
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field formats and ranges.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	overrides := map[string]*string{
		"PORT":            &cfg.Server.Port,
		"PUBLIC_BASE_URL": &cfg.Server.BaseURL,
		"REDIS_ADDR":      &cfg.Redis.Addr,
		"REDIS_PASSWORD":  &cfg.Redis.Password,
		"DATABASE_URL":    &cfg.Postgres.URL,
		"OPENAI_BASE_URL": &cfg.Scoring.BaseURL,
		"OPENAI_API_KEY":  &cfg.Scoring.APIKey,
		"OPENAI_MODEL":    &cfg.Scoring.Model,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
	if v := os.Getenv("CURRENT_GROUP"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CURRENT_GROUP: %w", err)
		}
		cfg.Intake.CurrentGroup = &id
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
