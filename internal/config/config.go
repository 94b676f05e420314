package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Session struct {
		TTL    string `yaml:"ttl"`
		Cookie string `yaml:"cookie"`
	} `yaml:"session"`
	AnswerKeys struct {
		// Source is "file" (shows file) or "postgres" (answer_keys table).
		Source string `yaml:"source"`
		TTL    string `yaml:"ttl"`
	} `yaml:"answer_keys"`
	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`
	Redis     RedisConfig `yaml:"redis"`
	ShowsFile string      `yaml:"shows_file"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
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
