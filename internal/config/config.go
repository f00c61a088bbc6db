// Package config loads service configuration from a YAML file, an
// optional .env file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Coaching CoachingConfig `yaml:"coaching"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Efficacy EfficacyConfig `yaml:"efficacy"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	CookieSecure      bool          `yaml:"cookie_secure"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// AuthConfig controls sign-in. JWTSecret normally comes from the environment.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
	EmailPattern      string        `yaml:"email_pattern"`
	InstructorPinHash string        `yaml:"instructor_pin_hash"`
}

// LLMConfig lists generation backends in fallback order.
type LLMConfig struct {
	Backends []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	Name      string        `yaml:"name"`
	Provider  string        `yaml:"provider"` // openai
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// APIKey resolves the backend key from its environment variable.
func (b BackendConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// ProtocolConfig defines the three-phase practice protocol.
type ProtocolConfig struct {
	Phases    map[string]PhaseConfig    `yaml:"phases"`
	Scenarios map[string]ScenarioConfig `yaml:"scenarios"`
}

type PhaseConfig struct {
	Scenario  string `yaml:"scenario"`
	TurnLimit int    `yaml:"turn_limit"`
}

// ScenarioConfig is a client persona script.
type ScenarioConfig struct {
	Name       string `yaml:"name"`
	Background string `yaml:"background"`
	Style      string `yaml:"style"`
}

type CoachingConfig struct {
	AdviceStreak    int `yaml:"advice_streak"`
	OpenQuestionGap int `yaml:"open_question_gap"`
}

type CorpusConfig struct {
	Datasets []DatasetConfig `yaml:"datasets"`
}

// DatasetConfig binds a culture label to a JSON or JSONL corpus file.
type DatasetConfig struct {
	Culture string `yaml:"culture"`
	File    string `yaml:"file"`
}

type EfficacyConfig struct {
	Max int `yaml:"max"`
}

// DefaultConfig returns a Config populated with working defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			CookieSecure:      true,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Database: DatabaseConfig{Path: "care-practice.db"},
		Log:      LogConfig{Level: "info"},
		Auth: AuthConfig{
			TokenTTL:     24 * time.Hour,
			BcryptCost:   12,
			EmailPattern: `^[^@\s]+@[^@\s]+\.[^@\s]+$`,
		},
		LLM: LLMConfig{
			Backends: []BackendConfig{
				{
					Name:      "openai",
					Provider:  "openai",
					Model:     "gpt-4o-mini",
					APIKeyEnv: "OPENAI_API_KEY",
					Timeout:   30 * time.Second,
				},
			},
		},
		Protocol: ProtocolConfig{
			Phases: map[string]PhaseConfig{
				"pre":      {Scenario: "alex", TurnLimit: 6},
				"practice": {Scenario: "veteran_father", TurnLimit: 10},
				"post":     {Scenario: "jane", TurnLimit: 6},
			},
			Scenarios: map[string]ScenarioConfig{
				"alex": {
					Name: "Alex (35, holiday loneliness)",
					Background: "You are a 35-year-old man. After the holidays you felt abandoned and alone. " +
						"Everyone met their families; you were not in touch with your parents and have no interest in repairing things.",
					Style: "Keep replies short (1-3 sentences). Show some skepticism when the counselor suggests solutions. " +
						"When sharing distress, be a bit disorganized and emotional.",
				},
				"veteran_father": {
					Name: "Veteran father (35, reunification barriers)",
					Background: "You are a 35-year-old veteran, now stable and court-mandated to treatment. " +
						"You want to reunite with your two young children but face legal barriers and gatekeeping.",
					Style: "Replies are 1-3 terse sentences. Resist direct advice and ask for reassurance when overwhelmed.",
				},
				"jane": {
					Name: "Jane (young adult, low mood & self-esteem, family issues)",
					Background: "You are a young adult with low mood, poor sleep and low self-esteem. " +
						"You feel invalidated by your family and often resist trying new ideas.",
					Style: "Keep replies 1-3 sentences, casual early on. Show reluctance toward suggestions.",
				},
			},
		},
		Coaching: CoachingConfig{AdviceStreak: 2, OpenQuestionGap: 3},
		Efficacy: EfficacyConfig{Max: 7},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
// A missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	// Secure cookies stay on unless explicitly disabled for local development.
	if os.Getenv("COOKIE_SECURE") == "false" {
		c.Server.CookieSecure = false
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		c.Auth.BcryptCost = cost
	}
	if v := os.Getenv("INSTRUCTOR_PIN_HASH"); v != "" {
		c.Auth.InstructorPinHash = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost must be between 4 and 14, got %d", c.Auth.BcryptCost)
	}
	if _, err := regexp.Compile(c.Auth.EmailPattern); err != nil {
		return fmt.Errorf("invalid email pattern: %w", err)
	}

	if len(c.LLM.Backends) == 0 {
		return errors.New("at least one llm backend is required")
	}
	for i, b := range c.LLM.Backends {
		if b.Provider != "openai" {
			return fmt.Errorf("llm backend %d: unsupported provider %q", i, b.Provider)
		}
		if b.Model == "" {
			return fmt.Errorf("llm backend %d: model is required", i)
		}
	}

	for _, phase := range []string{"pre", "practice", "post"} {
		p, ok := c.Protocol.Phases[phase]
		if !ok {
			return fmt.Errorf("protocol phase %q is not configured", phase)
		}
		if p.TurnLimit < 1 {
			return fmt.Errorf("protocol phase %q: turn limit must be positive", phase)
		}
		if _, ok := c.Protocol.Scenarios[p.Scenario]; !ok {
			return fmt.Errorf("protocol phase %q: unknown scenario %q", phase, p.Scenario)
		}
	}

	if c.Coaching.AdviceStreak < 1 || c.Coaching.OpenQuestionGap < 1 {
		return errors.New("coaching streak thresholds must be at least 1")
	}
	if c.Efficacy.Max < 1 {
		return errors.New("efficacy max must be at least 1")
	}

	seen := make(map[string]bool)
	for _, d := range c.Corpus.Datasets {
		if d.Culture == "" || d.File == "" {
			return errors.New("corpus datasets need both culture and file")
		}
		if seen[d.Culture] {
			return fmt.Errorf("corpus culture %q configured twice", d.Culture)
		}
		seen[d.Culture] = true
	}
	return nil
}
