// Package config loads the monitor's settings from a YAML file, with
// environment variables (optionally from .env) taking precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingAPIKey = errors.New("missing youtube_api_key / YOUTUBE_API_KEY")
	ErrNoChannels    = errors.New("no channels configured")
)

type Channel struct {
	ChannelID string `yaml:"channel_id"`
	Name      string `yaml:"name"`
}

type Config struct {
	YouTubeAPIKey string `yaml:"youtube_api_key"`

	CycleInterval  Seconds `yaml:"cycle_interval"`
	SearchInterval Seconds `yaml:"search_interval"`
	StatusInterval Seconds `yaml:"status_interval"`

	Channels []Channel `yaml:"channels"`

	SnapshotDir       string `yaml:"snapshot_dir"`
	SnapshotRetention int    `yaml:"snapshot_retention"`

	ListenAddr           string  `yaml:"listen_addr"`
	RequestTimeout       Seconds `yaml:"request_timeout"`
	SearchMaxResults     int     `yaml:"search_max_results"`
	APIRequestsPerSecond float64 `yaml:"api_requests_per_second"`

	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	DatabaseURL   string `yaml:"database_url"`

	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
}

// Seconds is a duration written in YAML either as a number of seconds or as
// a Go duration string ("2m", "90s").
type Seconds time.Duration

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	d, err := parseSeconds(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = Seconds(d)
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func Default() Config {
	return Config{
		CycleInterval:        Seconds(120 * time.Second),
		SearchInterval:       Seconds(180 * time.Second),
		StatusInterval:       Seconds(300 * time.Second),
		SnapshotDir:          "pesquisa_api",
		SnapshotRetention:    5,
		ListenAddr:           ":5000",
		RequestTimeout:       Seconds(10 * time.Second),
		SearchMaxResults:     10,
		APIRequestsPerSecond: 5,
		LogFile:              "logs/main.log",
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
	}
}

// LoadDotEnv loads .env the same way in every binary: ENV_FILE overrides the
// process environment, a plain .env only fills gaps.
func LoadDotEnv() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			log.Printf("env: failed to load ENV_FILE=%q: %v", envFile, err)
		} else {
			log.Printf("env: loaded %s", envFile)
		}
		return
	}
	if err := godotenv.Load(); err == nil {
		log.Printf("env: loaded .env")
	}
}

// Load reads path (a missing file is fine when the environment supplies
// everything), applies env overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			log.Printf("config: %s not found, using environment only", path)
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr("YOUTUBE_API_KEY", &c.YouTubeAPIKey)
	setStr("REDIS_URL", &c.RedisURL)
	setStr("REDIS_PASSWORD", &c.RedisPassword)
	setStr("DATABASE_URL", &c.DatabaseURL)
	setStr("LISTEN_ADDR", &c.ListenAddr)
	setStr("SNAPSHOT_DIR", &c.SnapshotDir)
	setStr("LOG_FILE", &c.LogFile)

	for key, dst := range map[string]*Seconds{
		"CYCLE_SECONDS":  &c.CycleInterval,
		"SEARCH_SECONDS": &c.SearchInterval,
		"STATUS_SECONDS": &c.StatusInterval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = Seconds(d)
	}
	return nil
}

// Validate checks the settings the monitor cannot run without. Channels may
// be empty here when a database registry will supply them.
func (c *Config) Validate() error {
	if c.YouTubeAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle_interval must be positive")
	}
	if c.StatusInterval < 0 || c.SearchInterval < 0 {
		return fmt.Errorf("status_interval and search_interval must not be negative")
	}
	if c.SnapshotRetention < 1 {
		return fmt.Errorf("snapshot_retention must be at least 1")
	}
	if len(c.Channels) == 0 && c.DatabaseURL == "" {
		return ErrNoChannels
	}
	for i, ch := range c.Channels {
		if ch.ChannelID == "" && ch.Name == "" {
			return fmt.Errorf("channels[%d]: channel_id or name is required", i)
		}
	}
	return nil
}
