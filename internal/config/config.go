// Package config loads the scheduler YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"scheduler/internal/interval"
)

// DefaultPath is used when no path is given.
const DefaultPath = "configs/config.yaml"

// Input kinds.
const (
	InputCSV    = "csv"
	InputXLSX   = "xlsx"
	InputSheets = "sheets"
)

type Config struct {
	Worker struct {
		Start              string `yaml:"start"` // "8:00"
		End                string `yaml:"end"`   // "15:40"
		BufferMinutes      *int   `yaml:"buffer_minutes"`
		GranularityMinutes int    `yaml:"granularity_minutes"`
	} `yaml:"worker"`

	Catalog struct {
		Path string `yaml:"path"` // empty: built-in tables
	} `yaml:"catalog"`

	// Schools maps a school name to the grades it serves.
	Schools map[string][]int `yaml:"schools"`

	Input struct {
		Kind            string   `yaml:"kind"`
		Path            string   `yaml:"path"`
		Sheet           string   `yaml:"sheet"`
		SpreadsheetID   string   `yaml:"spreadsheet_id"`
		Ranges          []string `yaml:"ranges"`
		CredentialsFile string   `yaml:"credentials_file"`
	} `yaml:"input"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	Database struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTLHours int    `yaml:"ttl_hours"`
	} `yaml:"redis"`

	Metrics struct {
		Namespace string `yaml:"namespace"`
		Textfile  string `yaml:"textfile"`
	} `yaml:"metrics"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		ChatIDs  []int64 `yaml:"chat_ids"`
		Debug    bool    `yaml:"debug"`
	} `yaml:"telegram"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads path, expands ${ENV_VAR} placeholders, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document the same way Load does.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.Start == "" {
		c.Worker.Start = "8:00"
	}
	if c.Worker.End == "" {
		c.Worker.End = "15:40"
	}
	if c.Worker.BufferMinutes == nil {
		buffer := 5
		c.Worker.BufferMinutes = &buffer
	}
	if c.Worker.GranularityMinutes == 0 {
		c.Worker.GranularityMinutes = 10
	}
	if len(c.Schools) == 0 {
		c.Schools = map[string][]int{
			"middle": {6, 7, 8},
			"high":   {9, 10, 11, 12},
		}
	}
	if c.Input.Kind == "" {
		c.Input.Kind = InputCSV
	}
	c.Input.Kind = strings.ToLower(c.Input.Kind)
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/scheduler.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Redis.TTLHours == 0 {
		c.Redis.TTLHours = 24 * 7
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "scheduler"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	start, err := interval.ParseClock(c.Worker.Start)
	if err != nil {
		return fmt.Errorf("worker.start: %w", err)
	}
	end, err := interval.ParseClock(c.Worker.End)
	if err != nil {
		return fmt.Errorf("worker.end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("worker: end (%s) must be after start (%s)", c.Worker.End, c.Worker.Start)
	}
	if c.Worker.BufferMinutes != nil && *c.Worker.BufferMinutes < 0 {
		return fmt.Errorf("worker.buffer_minutes cannot be negative")
	}
	if c.Worker.GranularityMinutes <= 0 {
		return fmt.Errorf("worker.granularity_minutes must be positive, got %d", c.Worker.GranularityMinutes)
	}

	seen := make(map[int]string)
	for school, grades := range c.Schools {
		if strings.TrimSpace(school) == "" {
			return fmt.Errorf("schools: name is required")
		}
		if len(grades) == 0 {
			return fmt.Errorf("schools.%s: no grades listed", school)
		}
		for _, g := range grades {
			if other, dup := seen[g]; dup {
				return fmt.Errorf("schools.%s: grade %d already belongs to %s", school, g, other)
			}
			seen[g] = school
		}
	}

	switch c.Input.Kind {
	case InputCSV, InputXLSX:
		if c.Input.Path == "" {
			return fmt.Errorf("input.path is required for %s input", c.Input.Kind)
		}
	case InputSheets:
		if c.Input.SpreadsheetID == "" {
			return fmt.Errorf("input.spreadsheet_id is required for sheets input")
		}
		if c.Input.CredentialsFile == "" {
			return fmt.Errorf("input.credentials_file is required for sheets input")
		}
	default:
		return fmt.Errorf("input.kind: unknown kind '%s'", c.Input.Kind)
	}

	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days cannot be negative")
	}
	if c.Redis.TTLHours < 0 {
		return fmt.Errorf("redis.ttl_hours cannot be negative")
	}
	if c.Telegram.BotToken != "" && len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram.chat_ids is required when bot_token is set")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// WorkerHours returns the working window in minutes from midnight.
// Only valid after Validate succeeded.
func (c *Config) WorkerHours() (start, end int) {
	start, _ = interval.ParseClock(c.Worker.Start)
	end, _ = interval.ParseClock(c.Worker.End)
	return start, end
}

// Buffer returns the idle minutes enforced after each booking.
func (c *Config) Buffer() int {
	if c.Worker.BufferMinutes == nil {
		return 5
	}
	return *c.Worker.BufferMinutes
}

// GradeSchools inverts Schools into a grade lookup.
func (c *Config) GradeSchools() map[int]string {
	out := make(map[int]string)
	for school, grades := range c.Schools {
		for _, g := range grades {
			out[g] = school
		}
	}
	return out
}

// CacheTTL returns the Redis snapshot lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLHours) * time.Hour
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Logging.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
