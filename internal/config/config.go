// Package config provides configuration loading for the trip planner.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Planner  PlannerConfig  `yaml:"planner"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	// Addr is the listen address (default: 127.0.0.1:8080)
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store
type DatabaseConfig struct {
	// Path is the database file, or ":memory:"
	Path string `yaml:"path"`
}

// QueueConfig configures the job queue
type QueueConfig struct {
	// URL is the NATS server URL (empty = in-process broker)
	URL              string        `yaml:"url"`
	Stream           string        `yaml:"stream"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	Prefetch         int           `yaml:"prefetch"`
	MaxDeliver       int           `yaml:"max_deliver"`
	AckWait          time.Duration `yaml:"ack_wait"`
}

// PlannerConfig tunes itinerary assembly and enrichment
type PlannerConfig struct {
	// GroupDistanceKm is the proximity grouping threshold
	GroupDistanceKm float64 `yaml:"group_distance_km"`
	// LodgingRadiusKm bounds the hotel and event search around each place
	LodgingRadiusKm float64 `yaml:"lodging_radius_km"`
	NearestHotels   int     `yaml:"nearest_hotels"`
	EventsPerPlace  int     `yaml:"events_per_place"`
	LookupWorkers   int     `yaml:"lookup_workers"`
	// RandomSeed makes enrichment choices repeatable; 0 seeds randomly
	RandomSeed uint64 `yaml:"random_seed"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "trip-planner.db",
		},
		Queue: QueueConfig{
			URL:              "",
			Stream:           "PLANNING",
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 10 * time.Second,
			Prefetch:         1,
			MaxDeliver:       3,
			AckWait:          time.Minute,
		},
		Planner: PlannerConfig{
			GroupDistanceKm: 20,
			LodgingRadiusKm: 15,
			NearestHotels:   5,
			EventsPerPlace:  2,
			LookupWorkers:   4,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Queue.Prefetch < 1 {
		return fmt.Errorf("queue.prefetch must be at least 1")
	}
	if c.Queue.MaxDeliver < 1 {
		return fmt.Errorf("queue.max_deliver must be at least 1")
	}
	if c.Planner.GroupDistanceKm <= 0 {
		return fmt.Errorf("planner.group_distance_km must be positive")
	}
	if c.Planner.LodgingRadiusKm <= 0 {
		return fmt.Errorf("planner.lodging_radius_km must be positive")
	}
	if c.Planner.NearestHotels < 1 {
		return fmt.Errorf("planner.nearest_hotels must be at least 1")
	}
	if c.Planner.EventsPerPlace < 0 {
		return fmt.Errorf("planner.events_per_place must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	// Database
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}

	// Queue
	if other.Queue.URL != "" {
		c.Queue.URL = other.Queue.URL
	}
	if other.Queue.Stream != "" {
		c.Queue.Stream = other.Queue.Stream
	}
	if other.Queue.ConnectTimeout != 0 {
		c.Queue.ConnectTimeout = other.Queue.ConnectTimeout
	}
	if other.Queue.OperationTimeout != 0 {
		c.Queue.OperationTimeout = other.Queue.OperationTimeout
	}
	if other.Queue.Prefetch != 0 {
		c.Queue.Prefetch = other.Queue.Prefetch
	}
	if other.Queue.MaxDeliver != 0 {
		c.Queue.MaxDeliver = other.Queue.MaxDeliver
	}
	if other.Queue.AckWait != 0 {
		c.Queue.AckWait = other.Queue.AckWait
	}

	// Planner
	if other.Planner.GroupDistanceKm != 0 {
		c.Planner.GroupDistanceKm = other.Planner.GroupDistanceKm
	}
	if other.Planner.LodgingRadiusKm != 0 {
		c.Planner.LodgingRadiusKm = other.Planner.LodgingRadiusKm
	}
	if other.Planner.NearestHotels != 0 {
		c.Planner.NearestHotels = other.Planner.NearestHotels
	}
	if other.Planner.EventsPerPlace != 0 {
		c.Planner.EventsPerPlace = other.Planner.EventsPerPlace
	}
	if other.Planner.LookupWorkers != 0 {
		c.Planner.LookupWorkers = other.Planner.LookupWorkers
	}
	if other.Planner.RandomSeed != 0 {
		c.Planner.RandomSeed = other.Planner.RandomSeed
	}
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() error {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.Queue.URL = getEnv("NATS_URL", c.Queue.URL)

	if seed := os.Getenv("PLANNER_RANDOM_SEED"); seed != "" {
		n, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PLANNER_RANDOM_SEED: %w", err)
		}
		c.Planner.RandomSeed = n
	}
	return nil
}

// Load builds the effective configuration: defaults, then the optional file,
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
