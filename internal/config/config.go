package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmorgan81/crimage/internal/image"
	"github.com/dmorgan81/crimage/internal/urlcache"
	"github.com/samber/lo"
)

type Config struct {
	Addr      string
	LogLevel  string
	Lambda    bool
	CacheSize int

	FetchTimeout time.Duration

	// SSM parameter paths; empty means use the built-in values.
	ModelsParam   string
	DenylistParam string

	ArchiveBucket       string
	ArchiveDistribution string
	ArchiveBaseURL      string
}

func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// FromEnv reads configuration through getenv, normally os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr: lo.CoalesceOrEmpty(
			getenv("ADDR"),
			lo.Ternary(getenv("PORT") != "", ":"+getenv("PORT"), ""),
			":8000",
		),
		LogLevel:            getenv("LOG_LEVEL"),
		Lambda:              getenv("AWS_LAMBDA_FUNCTION_NAME") != "",
		CacheSize:           urlcache.DefaultSize,
		FetchTimeout:        image.DefaultTimeout,
		ModelsParam:         getenv("MODELS_PARAM"),
		DenylistParam:       getenv("DENYLIST_PARAM"),
		ArchiveBucket:       getenv("ARCHIVE_BUCKET"),
		ArchiveDistribution: getenv("ARCHIVE_DISTRIBUTION"),
		ArchiveBaseURL:      getenv("ARCHIVE_BASE_URL"),
	}

	if v := getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("CACHE_SIZE: must be a positive integer, got %q", v)
		}
		cfg.CacheSize = n
	}
	if v := getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("FETCH_TIMEOUT: must be a positive duration, got %q", v)
		}
		cfg.FetchTimeout = d
	}
	if cfg.ArchiveEnabled() && cfg.ArchiveBaseURL == "" {
		cfg.ArchiveBaseURL = "https://" + cfg.ArchiveBucket + ".s3.amazonaws.com"
	}
	return cfg, nil
}
