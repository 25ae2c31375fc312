// Package config loads lingonary settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingDatabaseURL = errors.New("database.url is required for the postgres driver")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env    string `mapstructure:"env"` // local, production
	DB     DB     `mapstructure:"database"`
	Quiz   Quiz   `mapstructure:"quiz"`
	Saver  Saver  `mapstructure:"saver"`
	Import Import `mapstructure:"import"`
}

// DB selects and tunes the word store.
type DB struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // postgres DSN
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// Quiz holds the user's review preferences.
type Quiz struct {
	Length           int  `mapstructure:"length"`
	MasteryThreshold int  `mapstructure:"mastery_threshold"`
	IncludeMastered  bool `mapstructure:"include_mastered"`
	MinWords         int  `mapstructure:"min_words"` // library size needed to start a review
}

// Saver sizes the background persistence pool.
type Saver struct {
	Workers int `mapstructure:"workers"`
	Queue   int `mapstructure:"queue"`
}

// Import tunes transcript import.
type Import struct {
	Padding   time.Duration `mapstructure:"padding"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Override adjusts a loaded Config before it is validated, as command-line flags do.
type Override func(*Config)

// Load reads configuration from path (or ./config/config.yaml when path is
// empty) and LINGONARY_* environment variables, then applies overrides in
// order. A missing default file is not an error.
func Load(path string, overrides ...Override) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	v.SetDefault("env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "lingonary.db")
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("quiz.length", 10)
	v.SetDefault("quiz.mastery_threshold", 6)
	v.SetDefault("quiz.include_mastered", false)
	v.SetDefault("quiz.min_words", 4)
	v.SetDefault("saver.workers", 1)
	v.SetDefault("saver.queue", 64)
	v.SetDefault("import.padding", "2500ms")
	v.SetDefault("import.batch_size", 50)

	v.SetEnvPrefix("lingonary")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "DATABASE_URL", "LINGONARY_DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	switch c.DB.Driver {
	case "sqlite", "":
		c.DB.Driver = "sqlite"
	case "postgres":
		if c.DB.URL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DB.Driver)
	}
	if c.Quiz.Length <= 0 {
		c.Quiz.Length = 10
	}
	if c.Quiz.MasteryThreshold <= 0 {
		c.Quiz.MasteryThreshold = 6
	}
	if c.Quiz.MinWords < 0 {
		c.Quiz.MinWords = 0
	}
	return nil
}
