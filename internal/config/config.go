// Package config loads settings from .env, the environment and flags, and
// the optional YAML exam blueprint.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"exam-app/internal/bank"
	"exam-app/internal/gemini"
	"exam-app/internal/quiz"
)

type Config struct {
	Addr          string
	QuestionDir   string
	DBPath        string
	LogMode       string
	AnswerPolicy  string
	BlueprintFile string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	// LLMCallsPerMinute paces analysis LLM calls; 0 disables pacing.
	LLMCallsPerMinute int

	// ServerURL is where the terminal exam client finds the service.
	ServerURL string
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := Config{
		Addr:          env("ADDR", ":8080"),
		QuestionDir:   env("QUESTION_DIR", "."),
		DBPath:        env("DB_PATH", "exam.db"),
		LogMode:       env("LOG_MODE", "dev"),
		AnswerPolicy:  env("ANSWER_POLICY", "lenient"),
		BlueprintFile: env("EXAM_BLUEPRINT", ""),
		GeminiAPIKey:  env("GEMINI_API_KEY", ""),
		GeminiModel:   env("GEMINI_MODEL", gemini.DefaultModel),
		GeminiBaseURL: env("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		ServerURL:     env("EXAM_SERVER_URL", "http://localhost:8080"),
	}

	rate, err := strconv.Atoi(env("LLM_CALLS_PER_MINUTE", "30"))
	if err != nil || rate < 0 {
		return Config{}, fmt.Errorf("LLM_CALLS_PER_MINUTE must be a non-negative integer, got %q", getenv("LLM_CALLS_PER_MINUTE"))
	}
	cfg.LLMCallsPerMinute = rate
	return cfg, nil
}

// RegisterFlags binds command-line overrides for the fields a binary uses.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.QuestionDir, "data", c.QuestionDir, "directory containing the topic CSV files")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database for exam results")
	fs.StringVar(&c.LogMode, "log", c.LogMode, "log mode: dev or prod")
	fs.StringVar(&c.AnswerPolicy, "answers", c.AnswerPolicy, "malformed correct-answer handling: lenient or strict")
	fs.StringVar(&c.BlueprintFile, "blueprint", c.BlueprintFile, "YAML exam blueprint (empty for the built-in one)")
}

func (c Config) Policy() (bank.AnswerPolicy, error) {
	return bank.ParseAnswerPolicy(c.AnswerPolicy)
}

func (c Config) Gemini() gemini.Config {
	return gemini.Config{
		APIKey:  c.GeminiAPIKey,
		Model:   c.GeminiModel,
		BaseURL: c.GeminiBaseURL,
	}
}

// Blueprint returns the exam blueprint from BlueprintFile, or the built-in
// one when no file is configured.
func (c Config) Blueprint() (quiz.Blueprint, error) {
	if strings.TrimSpace(c.BlueprintFile) == "" {
		return quiz.DefaultBlueprint(), nil
	}
	return LoadBlueprint(c.BlueprintFile)
}

// LoadBlueprint reads a YAML blueprint. Keys absent from the file keep their
// built-in values; a strata list in the file replaces the built-in list.
func LoadBlueprint(path string) (quiz.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return quiz.Blueprint{}, fmt.Errorf("read blueprint: %w", err)
	}
	return ParseBlueprint(data)
}

func ParseBlueprint(data []byte) (quiz.Blueprint, error) {
	blueprint := quiz.DefaultBlueprint()
	var overlay quiz.Blueprint
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return quiz.Blueprint{}, fmt.Errorf("parse blueprint: %w", err)
	}

	if overlay.PrimaryCount != 0 {
		blueprint.PrimaryCount = overlay.PrimaryCount
	}
	if overlay.SupplementaryNumber != 0 {
		blueprint.SupplementaryNumber = overlay.SupplementaryNumber
	}
	if overlay.Strata != nil {
		blueprint.Strata = overlay.Strata
	}
	if overlay.Duration != 0 {
		blueprint.Duration = overlay.Duration
	}
	if overlay.MinTopic != 0 {
		blueprint.MinTopic = overlay.MinTopic
	}
	if overlay.MaxTopic != 0 {
		blueprint.MaxTopic = overlay.MaxTopic
	}

	if err := blueprint.Validate(); err != nil {
		return quiz.Blueprint{}, fmt.Errorf("invalid blueprint: %w", err)
	}
	return blueprint, nil
}
