// Package config reads the server settings from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lanes/internal/game"
	"lanes/internal/rules"
)

// Config holds every setting of the server process.
type Config struct {
	Addr            string
	DBPath          string
	NATSURL         string
	LogLevel        string
	LogFormat       string
	GracePeriod     time.Duration
	TurnTimeout     time.Duration
	CleanupInterval time.Duration
	SessionMaxAge   time.Duration
	RulesetFile     string
}

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "lanes.db",
		LogLevel:        "info",
		LogFormat:       "json",
		GracePeriod:     30 * time.Second,
		CleanupInterval: time.Minute,
		SessionMaxAge:   time.Hour,
	}
}

// Load reads the environment on top of Default.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	c := Default()
	if p := getenv("PORT"); p != "" {
		if _, err := strconv.Atoi(p); err != nil {
			return c, fmt.Errorf("PORT: %w", err)
		}
		c.Addr = ":" + p
	}
	if p := getenv("DB_PATH"); p != "" {
		c.DBPath = p
	}
	c.NATSURL = getenv("NATS_URL")
	if p := getenv("LOG_LEVEL"); p != "" {
		c.LogLevel = p
	}
	if p := getenv("LOG_FORMAT"); p != "" {
		c.LogFormat = p
	}
	c.RulesetFile = getenv("RULESET_FILE")

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"GRACE_PERIOD", &c.GracePeriod},
		{"TURN_TIMEOUT", &c.TurnTimeout},
		{"CLEANUP_INTERVAL", &c.CleanupInterval},
		{"SESSION_MAX_AGE", &c.SessionMaxAge},
	}
	for _, d := range durations {
		v := getenv(d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", d.name, err)
		}
		if parsed < 0 {
			return c, fmt.Errorf("%s: must not be negative", d.name)
		}
		*d.dst = parsed
	}
	if c.CleanupInterval == 0 {
		return c, errors.New("CLEANUP_INTERVAL: must be positive")
	}
	return c, nil
}

// Logger builds the process logger: JSON production output, or the
// development console encoder when LogFormat is "console".
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	var zc zap.Config
	switch c.LogFormat {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// LoadRulesets adds the rulesets of a JSON array file to reg. Every entry
// is validated, including its scoring; a name already registered is an
// error.
func LoadRulesets(path string, reg *game.Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rulesets: %w", err)
	}
	var rulesets []game.Ruleset
	if err := json.Unmarshal(data, &rulesets); err != nil {
		return fmt.Errorf("parse rulesets %s: %w", path, err)
	}
	for _, rs := range rulesets {
		if _, err := rules.ScorerFor(rs.Scoring); err != nil {
			return fmt.Errorf("ruleset %q: %w", rs.Name, err)
		}
		if err := reg.Add(rs); err != nil {
			return fmt.Errorf("ruleset %q: %w", rs.Name, err)
		}
	}
	return nil
}
