package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Environment overrides
const (
	EnvListen   = "LISTEN_ADDR"
	EnvDBURL    = "DB_URL"
	EnvRedisURL = "REDIS_URL"
	EnvLogLevel = "LOG_LEVEL"
)

const (
	defaultListen       = "127.0.0.1:8899"
	defaultRedisChannel = "stream-downloader:events"
	defaultM3U8Bin      = "N_m3u8DL-RE"
	defaultYTDLPBin     = "yt-dlp"
	defaultStoreTimeout = 5 * time.Second
)

type WorkersConfig struct {
	M3U8Bin  string `yaml:"m3u8_bin"`
	YTDLPBin string `yaml:"ytdlp_bin"`
}

type Config struct {
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	DatabaseURL  string        `yaml:"database_url"`
	RedisURL     string        `yaml:"redis_url"`
	RedisChannel string        `yaml:"redis_channel"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	Workers      WorkersConfig `yaml:"workers"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.RedisChannel == "" {
		c.RedisChannel = defaultRedisChannel
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.Workers.M3U8Bin == "" {
		c.Workers.M3U8Bin = defaultM3U8Bin
	}
	if c.Workers.YTDLPBin == "" {
		c.Workers.YTDLPBin = defaultYTDLPBin
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Load reads the YAML config at path. A missing file yields the defaults.
// Values from the environment (and a .env file, if present) take precedence.
func Load(afs afero.Fs, path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	content, err := afero.ReadFile(afs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	applyEnv(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(afero.NewOsFs(), path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv(EnvDBURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}
