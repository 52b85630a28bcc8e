package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Google     GoogleConfig     `yaml:"google"`
	Outscraper OutscraperConfig `yaml:"outscraper"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Scoring    ScoringConfig    `yaml:"scoring"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig configures the daemon's analyze and aggregate intervals.
type ScheduleConfig struct {
	AnalyzeInterval   string `yaml:"analyze_interval"`
	AggregateInterval string `yaml:"aggregate_interval"`
}

// ParseAnalyzeInterval returns the analyze interval as time.Duration.
func (s ScheduleConfig) ParseAnalyzeInterval() time.Duration {
	d, err := time.ParseDuration(s.AnalyzeInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// ParseAggregateInterval returns the aggregate interval as time.Duration.
func (s ScheduleConfig) ParseAggregateInterval() time.Duration {
	d, err := time.ParseDuration(s.AggregateInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// GoogleConfig configures Places text-search collection. Queries are
// templates; %s is replaced with the city.
type GoogleConfig struct {
	APIKey  string   `yaml:"api_key"`
	City    string   `yaml:"city"`
	Queries []string `yaml:"queries"`
}

// OutscraperConfig configures review scraping.
type OutscraperConfig struct {
	APIKey          string `yaml:"api_key"`
	ReviewsPerPlace int    `yaml:"reviews_per_place"`
}

// OpenAIConfig configures the review signal extraction model.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ScoringConfig tunes lens scoring and badge thresholds.
type ScoringConfig struct {
	MinReviews           int     `yaml:"min_reviews"`           // below this coverage: low-data badge
	UnderratedPercentile float64 `yaml:"underrated_percentile"` // underrated badge cutoff, 0-100
	AnomalyThreshold     float64 `yaml:"anomaly_threshold"`     // isolation-forest cutoff for unique badge
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./divebar.db"},
		Server:   ServerConfig{Port: 8080},
		Schedule: ScheduleConfig{
			AnalyzeInterval:   "15m",
			AggregateInterval: "1h",
		},
		Google: GoogleConfig{
			City: "Denver, CO",
			Queries: []string{
				"Dive bars in %s",
				"Hole in the wall restaurants in %s",
				"Local favorite bars %s",
				"Best cheap eats %s",
				"Hidden gem restaurants %s",
			},
		},
		Outscraper: OutscraperConfig{ReviewsPerPlace: 50},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Scoring: ScoringConfig{
			MinReviews:           5,
			UnderratedPercentile: 80,
			AnomalyThreshold:     -0.1,
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIVEBAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.Google.APIKey = v
	}
	if v := os.Getenv("OUTSCRAPER_API_KEY"); v != "" {
		cfg.Outscraper.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
}
