package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// App Settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
	Workers  int    `envconfig:"MAX_WORKERS" default:"20"`

	// Probe Logic
	TestURL        string        `envconfig:"TEST_URL" default:"http://cp.cloudflare.com"`
	TcpTimeout     time.Duration `envconfig:"TCP_TIMEOUT" default:"2s"`
	ProbeTimeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
	StartupTimeout time.Duration `envconfig:"STARTUP_TIMEOUT" default:"2s"`
	SpawnInterval  time.Duration `envconfig:"SPAWN_INTERVAL" default:"0s"`
	PreCheck       bool          `envconfig:"PRE_CHECK" default:"true"`

	// File System Paths
	SingBoxPath  string `envconfig:"SING_BOX_PATH" default:"./bin/sing-box"`
	InputPath    string `envconfig:"INPUT_PATH" default:"proxies.txt"`
	OutputDir    string `envconfig:"OUTPUT_DIR" default:"out"`
	GeoIPPath    string `envconfig:"GEOIP_PATH" default:"GeoLite2-Country.mmdb"`
	DNSCachePath string `envconfig:"DNS_CACHE_PATH" default:"resolved.txt"`

	// Notifications (optional)
	TelegramToken   string `envconfig:"TELEGRAM_TOKEN" default:""`
	TelegramChatID  string `envconfig:"TELEGRAM_CHAT_ID" default:""`
	TelegramPushAll bool   `envconfig:"TELEGRAM_PUSH_ALL" default:"false"`
}

// Load reads .env and processes environment variables
func Load() *Config {
	// Silently ignore if .env is missing (production might use real ENV vars)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Configuration Error: %v", err)
	}
	return &cfg
}
