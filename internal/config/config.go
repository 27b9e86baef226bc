package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	TaskSet struct {
		TTL string `yaml:"ttl"`
	} `yaml:"taskset"`
	Session struct {
		Retention string `yaml:"retention"`
	} `yaml:"session"`
	Scoring struct {
		Mode            string `yaml:"mode"`
		AutoAdvance     bool   `yaml:"autoAdvance"`
		BasePoints      int    `yaml:"basePoints"`
		SpeedBonuses    []int  `yaml:"speedBonuses"`
		FastBonus       int    `yaml:"fastBonus"`
		FastThresholdMs int64  `yaml:"fastThresholdMs"`
	} `yaml:"scoring"`
	Bonus struct {
		Points   int    `yaml:"points"`
		Duration string `yaml:"duration"`
	} `yaml:"bonus"`
	Auth struct {
		TeacherSecret string `yaml:"teacherSecret"`
		TokenTTL      string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Report struct {
		SendgridKey string `yaml:"sendgridKey"`
		FromName    string `yaml:"fromName"`
		FromEmail   string `yaml:"fromEmail"`
	} `yaml:"report"`
	Judge struct {
		URL       string `yaml:"url"`
		APIKey    string `yaml:"apiKey"`
		Timeout   string `yaml:"timeout"`
		PerMinute int    `yaml:"perMinute"`
	} `yaml:"judge"`
	RateLimit struct {
		PerSecond float64 `yaml:"perSecond"`
		Burst     int     `yaml:"burst"`
	} `yaml:"ratelimit"`
}

// Load reads YAML config from path. ${VAR} references are expanded from the
// environment so secrets can stay in .env files.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
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
