// Package config loads the badge service settings from the environment,
// an optional .env file, or a YAML file named by CONFIG_PATH.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"3000"`
	CacheDir    string        `yaml:"cache_dir" env:"CACHE_DIR" env-default:"/tmp/badge-cache"`
	DataDir     string        `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	Directory   string        `yaml:"directory_file" env:"DIRECTORY_FILE"`
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	BodyLimitMB int           `yaml:"body_limit_mb" env:"BODY_LIMIT_MB" env-default:"50"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"30s"`
	Generation  Generation    `yaml:"generation"`
}

type Generation struct {
	Enabled     bool `yaml:"enabled" env:"GENERATION_ENABLED" env-default:"true"`
	MaxBatch    int  `yaml:"max_batch" env:"GENERATION_MAX_BATCH" env-default:"500"`
	Concurrency int  `yaml:"concurrency" env:"GENERATION_CONCURRENCY" env-default:"50"`
	DPI         int  `yaml:"dpi" env:"GENERATION_DPI" env-default:"300"`

	// FontDir may hold arial.ttf and arialbd.ttf for full Unicode text.
	FontDir string `yaml:"font_dir" env:"FONT_DIR" env-default:"fonts"`

	// Physical card size used for percent layouts.
	CardWidth  float64 `yaml:"card_width_mm" env:"CARD_WIDTH_MM" env-default:"105"`
	CardHeight float64 `yaml:"card_height_mm" env:"CARD_HEIGHT_MM" env-default:"74"`
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, cfg.validate()
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Generation.MaxBatch < 1 {
		return fmt.Errorf("generation.max_batch must be at least 1")
	}
	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be at least 1")
	}
	if c.BodyLimitMB < 1 {
		return fmt.Errorf("body_limit_mb must be at least 1")
	}
	return nil
}
