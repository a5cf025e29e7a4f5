// Package config loads server and pipeline settings from config files and
// DOIFIND_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Pipeline PipelineConfig
	Sources  SourcesConfig
	Store    StoreConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr string // listen address, host:port
}

type UploadConfig struct {
	MaxBytes int64  // upload size cap
	Dir      string // where uploaded documents and artifacts live
}

type PipelineConfig struct {
	Workers   int           // resolution worker pool size
	Budget    time.Duration // wall-clock allowance per job
	Threshold int           // minimum accepted match confidence, 0-100
}

type SourcesConfig struct {
	PubMedRPS   float64 // PubMed request rate ceiling
	CrossRefRPS float64 // CrossRef request rate ceiling
	Mailto      string  // contact address sent to CrossRef
}

type StoreConfig struct {
	Backend string // "memory" or "sqlite"
	Path    string // sqlite database path
}

type LogConfig struct {
	Level  string
	Format string // "console" or "json"
}

// Load reads configuration from an optional config.yaml plus environment
// variables. Environment always wins.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.addr", "DOIFIND_ADDR")
	_ = v.BindEnv("upload.max_bytes", "DOIFIND_MAX_UPLOAD_BYTES")
	_ = v.BindEnv("upload.dir", "DOIFIND_UPLOAD_DIR")
	_ = v.BindEnv("pipeline.workers", "DOIFIND_WORKERS")
	_ = v.BindEnv("pipeline.budget", "DOIFIND_BUDGET")
	_ = v.BindEnv("pipeline.threshold", "DOIFIND_THRESHOLD")
	_ = v.BindEnv("sources.pubmed_rps", "DOIFIND_PUBMED_RPS")
	_ = v.BindEnv("sources.crossref_rps", "DOIFIND_CROSSREF_RPS")
	_ = v.BindEnv("sources.mailto", "DOIFIND_MAILTO")
	_ = v.BindEnv("store.backend", "DOIFIND_STORE")
	_ = v.BindEnv("store.path", "DOIFIND_STORE_PATH")
	_ = v.BindEnv("log.level", "DOIFIND_LOG_LEVEL")
	_ = v.BindEnv("log.format", "DOIFIND_LOG_FORMAT")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("upload.max_bytes", int64(50*1024*1024))
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.budget", "10m")
	v.SetDefault("pipeline.threshold", 70)
	// Both backends tolerate more, but 1 req/s is the safe unauthenticated
	// floor; operators raise it per deployment.
	v.SetDefault("sources.pubmed_rps", 1.0)
	v.SetDefault("sources.crossref_rps", 1.0)
	v.SetDefault("sources.mailto", "")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "doifind.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("upload.max_bytes"),
			Dir:      v.GetString("upload.dir"),
		},
		Pipeline: PipelineConfig{
			Workers:   v.GetInt("pipeline.workers"),
			Budget:    v.GetDuration("pipeline.budget"),
			Threshold: v.GetInt("pipeline.threshold"),
		},
		Sources: SourcesConfig{
			PubMedRPS:   v.GetFloat64("sources.pubmed_rps"),
			CrossRefRPS: v.GetFloat64("sources.crossref_rps"),
			Mailto:      v.GetString("sources.mailto"),
		},
		Store: StoreConfig{
			Backend: v.GetString("store.backend"),
			Path:    v.GetString("store.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Budget <= 0 {
		return fmt.Errorf("pipeline.budget must be positive, got %s", c.Pipeline.Budget)
	}
	if c.Pipeline.Threshold < 0 || c.Pipeline.Threshold > 100 {
		return fmt.Errorf("pipeline.threshold must be 0-100, got %d", c.Pipeline.Threshold)
	}
	if c.Sources.PubMedRPS <= 0 || c.Sources.CrossRefRPS <= 0 {
		return fmt.Errorf("source rate limits must be positive")
	}
	switch c.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.backend must be memory or sqlite, got %q", c.Store.Backend)
	}
	return nil
}
