// Package config reads the flat environment-variable configuration the proxy runs
// from. Configuration loading is an explicit non-goal of the core design (spec.md §1);
// this package is deliberately thin — no file format, no nested sections.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	APIKey string
	Host   string
	Port   int

	NyaaURL         string
	NyaaEnglishOnly bool
	NyaaTrustedOnly bool

	SonarrURL    string
	SonarrAPIKey string

	AnilistAPIURL    string
	AnilistRateLimit int

	TheXEMURL string

	DataDir string

	AnimeDBURL            string
	AnimeDBUpdateInterval time.Duration

	CacheTTL        time.Duration
	MappingCacheTTL time.Duration

	MaxResultsPerQuery int
	EnableDedup        bool

	LogLevel string
}

// Load reads Config from the process environment, applying the same defaults the
// original service shipped with, and validates required settings.
func Load() (*Config, error) {
	c := &Config{
		APIKey:                getString("API_KEY", "your-secret-api-key-here"),
		Host:                  getString("HOST", "0.0.0.0"),
		Port:                  getInt("PORT", 8000),
		NyaaURL:               getString("NYAA_URL", "https://nyaa.si"),
		NyaaEnglishOnly:       getBool("NYAA_ENGLISH_ONLY", true),
		NyaaTrustedOnly:       getBool("NYAA_TRUSTED_ONLY", false),
		SonarrURL:             getString("SONARR_URL", ""),
		SonarrAPIKey:          getString("SONARR_API_KEY", ""),
		AnilistAPIURL:         getString("ANILIST_API_URL", "https://graphql.anilist.co"),
		AnilistRateLimit:      getInt("ANILIST_RATE_LIMIT", 90),
		TheXEMURL:             getString("THEXEM_URL", "https://thexem.info"),
		DataDir:               getString("DATA_DIR", "/app/data"),
		AnimeDBURL:            getString("ANIME_DB_URL", "https://github.com/manami-project/anime-offline-database/releases/latest/download/anime-offline-database-minified.json"),
		AnimeDBUpdateInterval: getDuration("ANIME_DB_UPDATE_INTERVAL", 86400*time.Second),
		CacheTTL:              getDuration("CACHE_TTL", 3600*time.Second),
		MappingCacheTTL:       getDuration("MAPPING_CACHE_TTL", 604800*time.Second),
		MaxResultsPerQuery:    getInt("MAX_RESULTS_PER_QUERY", 100),
		EnableDedup:           getBool("ENABLE_DEDUPLICATION", true),
		LogLevel:              getString("LOG_LEVEL", "info"),
	}

	errs := c.validate()
	if len(errs) > 0 {
		return nil, &ConfigError{Errors: errs}
	}
	return c, nil
}

func (c *Config) validate() []string {
	var errs []string
	if c.APIKey == "" {
		errs = append(errs, "API_KEY: required")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "PORT: must be between 1 and 65535")
	}
	if (c.SonarrURL == "") != (c.SonarrAPIKey == "") {
		errs = append(errs, "SONARR_URL and SONARR_API_KEY must both be set or both be empty")
	}
	return errs
}

// SonarrConfigured reports whether the optional PVR integration is wired.
func (c *Config) SonarrConfigured() bool {
	return c.SonarrURL != "" && c.SonarrAPIKey != ""
}

func getString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func getInt(name string, def int) int {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(name string, def bool) bool {
	if v, ok := os.LookupEnv(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(name string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
