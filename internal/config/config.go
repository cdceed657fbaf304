package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   string   `yaml:"listen"`
	Logger   Logger   `yaml:"logger"`
	Storage  Storage  `yaml:"storage"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Problems Problems `yaml:"problems"`
	Contest  Contest  `yaml:"contest"`
	CORS     CORS     `yaml:"cors"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

type JWT struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// Problems configures where problem scripts live and how they are executed.
type Problems struct {
	Root          string  `yaml:"root"`
	StaticURL     string  `yaml:"static_url"`
	Interpreter   string  `yaml:"interpreter"`
	ScriptTimeout int     `yaml:"script_timeout_seconds"`
	Sandbox       Sandbox `yaml:"sandbox"`
}

// Sandbox runs problem scripts inside a locked-down container instead of a
// plain subprocess.
type Sandbox struct {
	Enabled bool   `yaml:"enabled"`
	Docker  string `yaml:"docker"`
	Image   string `yaml:"image"`
}

type Contest struct {
	FlagMaxLength int    `yaml:"flag_max_length"`
	SubmitPerSec  int    `yaml:"submit_per_second"`
	BoardCacheTTL int    `yaml:"board_cache_ttl_seconds"`
	OverallScale  int    `yaml:"overall_scale"`
	ProblemSalt   string `yaml:"problem_salt"`
	ServerSecret  string `yaml:"server_secret"`
	OverallCode   string `yaml:"overall_code"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Contest.ServerSecret == "" {
		return nil, fmt.Errorf("contest.server_secret must be set")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Problems.Interpreter == "" {
		c.Problems.Interpreter = "python3"
	}
	if c.Problems.ScriptTimeout <= 0 {
		c.Problems.ScriptTimeout = 10
	}
	if c.Contest.FlagMaxLength <= 0 {
		c.Contest.FlagMaxLength = 100
	}
	if c.Contest.SubmitPerSec <= 0 {
		c.Contest.SubmitPerSec = 2
	}
	if c.Contest.BoardCacheTTL <= 0 {
		c.Contest.BoardCacheTTL = 30
	}
	if c.Contest.OverallScale <= 0 {
		c.Contest.OverallScale = 1000
	}
	if c.Contest.OverallCode == "" {
		c.Contest.OverallCode = "overall"
	}
}

// ScriptTimeoutDuration returns the grader/generator timeout as a Duration.
func (c *Config) ScriptTimeoutDuration() time.Duration {
	return time.Duration(c.Problems.ScriptTimeout) * time.Second
}

// BoardTTL returns the scoreboard cache TTL as a Duration.
func (c *Config) BoardTTL() time.Duration {
	return time.Duration(c.Contest.BoardCacheTTL) * time.Second
}
