// Package config collects every tunable of the tool from a .env file
// and the process environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

type Config struct {
	SourceLang string
	TargetLang string

	Endpoints        []string
	FallbackEndpoint string

	CachePath   string
	DatabaseURL string

	GlossaryPath   string
	RegexBlacklist []string

	BatchSize      int
	MaxBatchChars  int
	Concurrency    int
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	MaxRetries     int
	BanThreshold   int
	BanDuration    time.Duration
	Racing         int

	TranslateNotes    bool
	TranslateComments bool

	LogLevel string
}

// Load reads .env when present and builds the configuration with
// defaults matching a small self-hosted endpoint setup.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		SourceLang:        getEnv("SOURCE_LANG", "auto"),
		TargetLang:        getEnv("TARGET_LANG", "en"),
		Endpoints:         getEnvList("TRANSLATOR_ENDPOINTS"),
		FallbackEndpoint:  getEnv("FALLBACK_ENDPOINT", ""),
		CachePath:         getEnv("CACHE_PATH", ".rpgm_cache.jsonl"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		GlossaryPath:      getEnv("GLOSSARY_PATH", ""),
		RegexBlacklist:    splitPatterns(getEnv("REGEX_BLACKLIST", "")),
		BatchSize:         getEnvInt("BATCH_SIZE", 1),
		MaxBatchChars:     getEnvInt("MAX_BATCH_CHARS", 1500),
		Concurrency:       getEnvInt("CONCURRENCY", 20),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 15000)) * time.Millisecond,
		RequestDelay:      time.Duration(getEnvInt("REQUEST_DELAY_MS", 150)) * time.Millisecond,
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		BanThreshold:      getEnvInt("BAN_THRESHOLD", 5),
		BanDuration:       time.Duration(getEnvInt("BAN_SECONDS", 120)) * time.Second,
		Racing:            getEnvInt("RACING_REQUESTS", 2),
		TranslateNotes:    getEnvBool("TRANSLATE_NOTES", false),
		TranslateComments: getEnvBool("TRANSLATE_COMMENTS", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// ValidationError reports one unusable setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Validate fails fast on settings that would only blow up mid-run.
func (c *Config) Validate() error {
	if c.SourceLang != "auto" {
		if _, err := language.Parse(c.SourceLang); err != nil {
			return &ValidationError{Field: "SOURCE_LANG", Reason: fmt.Sprintf("invalid language tag %q", c.SourceLang)}
		}
	}
	if _, err := language.Parse(c.TargetLang); err != nil {
		return &ValidationError{Field: "TARGET_LANG", Reason: fmt.Sprintf("invalid language tag %q", c.TargetLang)}
	}
	for _, e := range append(append([]string{}, c.Endpoints...), c.FallbackEndpoint) {
		if e == "" {
			continue
		}
		u, err := url.Parse(e)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "TRANSLATOR_ENDPOINTS", Reason: fmt.Sprintf("not an http(s) url: %q", e)}
		}
	}
	if c.BatchSize < 1 {
		return &ValidationError{Field: "BATCH_SIZE", Reason: "must be at least 1"}
	}
	if c.Concurrency < 1 {
		return &ValidationError{Field: "CONCURRENCY", Reason: "must be at least 1"}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Field: "MAX_RETRIES", Reason: "must not be negative"}
	}
	if c.BanThreshold < 1 {
		return &ValidationError{Field: "BAN_THRESHOLD", Reason: "must be at least 1"}
	}
	if c.RequestTimeout <= 0 {
		return &ValidationError{Field: "REQUEST_TIMEOUT_MS", Reason: "must be positive"}
	}
	if _, err := c.BlacklistPatterns(); err != nil {
		return &ValidationError{Field: "REGEX_BLACKLIST", Reason: err.Error()}
	}
	return nil
}

// BlacklistPatterns compiles the skip patterns for the parsers.
func (c *Config) BlacklistPatterns() ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, p := range c.RegexBlacklist {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvList splits a comma-separated value.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitPatterns splits on ";;" because regular expressions may contain
// commas.
func splitPatterns(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";;") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
