package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must stay 0 for SSE
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent provider calls
}

type ChatConfig struct {
	MaxActiveChats    int           `yaml:"max_active_chats"`
	HistoryWindow     int           `yaml:"history_window"` // messages fed back to the provider
	DefaultTokenLimit int64         `yaml:"default_token_limit"`
	ExchangeOverhead  int           `yaml:"exchange_overhead_tokens"`
	SystemPrompt      string        `yaml:"system_prompt"`
	StreamTimeout     time.Duration `yaml:"stream_timeout"`
	SendRateLimit     int           `yaml:"send_rate_limit"` // sends per user per window
	SendRateWindow    time.Duration `yaml:"send_rate_window"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Chat     ChatConfig     `yaml:"chat"`
	Auth     AuthConfig     `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

const defaultSystemPrompt = "You are a helpful assistant. Answer concisely and truthfully."

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !dev && cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Chat.MaxActiveChats <= 0 {
		cfg.Chat.MaxActiveChats = 5
	}
	if cfg.Chat.HistoryWindow <= 0 {
		cfg.Chat.HistoryWindow = 10
	}
	if cfg.Chat.DefaultTokenLimit <= 0 {
		cfg.Chat.DefaultTokenLimit = 100_000
	}
	if cfg.Chat.ExchangeOverhead <= 0 {
		cfg.Chat.ExchangeOverhead = 8
	}
	if cfg.Chat.SystemPrompt == "" {
		cfg.Chat.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Chat.StreamTimeout <= 0 {
		cfg.Chat.StreamTimeout = 120 * time.Second
	}
	if cfg.Chat.SendRateLimit <= 0 {
		cfg.Chat.SendRateLimit = 20
	}
	if cfg.Chat.SendRateWindow <= 0 {
		cfg.Chat.SendRateWindow = time.Minute
	}
}
