// Package config loads typed, immutable-after-init settings for the
// federation client engine from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Immutable after Load returns; components that need live-toggleable flags
// hold their own atomic value seeded from Config at construction.
type Config struct {
	ServerName    string // SERVER_NAME
	ServerVersion string // SERVER_VERSION
	LogLevel      string // LOG_LEVEL: debug/info/warning/error

	RateLimitEnabled bool          // RATE_LIMIT_ENABLED
	RateLimitMax     int           // RATE_LIMIT_MAX
	RateLimitWindow  time.Duration // RATE_LIMIT_WINDOW_MS

	RequestTimeout time.Duration // REQUEST_TIMEOUT_MS
	UserAgent      string        // USER_AGENT

	BlockedInstances        []string // BLOCKED_INSTANCES, comma-separated
	InstanceBlockingEnabled bool     // INSTANCE_BLOCKING_ENABLED

	AuditLogEnabled    bool // AUDIT_LOG_ENABLED
	AuditLogMaxEntries int  // AUDIT_LOG_MAX_ENTRIES

	RespectContentWarnings bool // RESPECT_CONTENT_WARNINGS

	DefaultInstance string // ACTIVITYPUB_DEFAULT_INSTANCE
	DefaultToken    string // ACTIVITYPUB_DEFAULT_TOKEN
	DefaultUsername string // ACTIVITYPUB_DEFAULT_USERNAME
	Accounts        string // ACTIVITYPUB_ACCOUNTS, raw structured string

	DynamicInstanceCacheTTL time.Duration // DYNAMIC_INSTANCE_CACHE_TTL_MS

	// Tunable performance constants not named in the environment table but
	// referenced throughout SPEC_FULL.md; defaults mirror the spec text.
	CacheTTLActor          time.Duration // default 5m
	CacheTTLInstance       time.Duration // default = DynamicInstanceCacheTTL
	CacheTTLMedia          time.Duration // default 1h
	NegativeCacheTTL       time.Duration // default 60s
	InstanceBackoffCeiling time.Duration // default 5s
	GlobalConcurrency      int           // default 16
	PerInstanceConcurrency int           // default 4
	BatchFanoutConcurrency int           // default 5
	MaxBatchSize           int           // default 20
	MaxPostLength          int           // default 5000
	MetricsHistorySize     int           // default 1000
	AuditRingSize          int           // default = AuditLogMaxEntries; 0 when AuditLogEnabled is false
}

// Load reads configuration from environment variables, applying the
// defaults from SPEC_FULL.md §6. It never exits the process — callers that
// require credentials check Config fields themselves; write operations
// degrade to WriteNotEnabledError rather than a fatal startup error, since
// this engine is a read-capable client even with zero accounts configured.
func Load() *Config {
	cfg := &Config{
		ServerName:    getEnv("SERVER_NAME", "activitypub-mcp"),
		ServerVersion: getEnv("SERVER_VERSION", "1.1.0"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", false),
		RateLimitMax:     getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:  getEnvMillis("RATE_LIMIT_WINDOW_MS", 900_000),

		RequestTimeout: getEnvMillis("REQUEST_TIMEOUT_MS", 10_000),
		UserAgent:      getEnv("USER_AGENT", "ActivityPub-MCP-Client/1.x"),

		BlockedInstances:        parseList(os.Getenv("BLOCKED_INSTANCES")),
		InstanceBlockingEnabled: getEnvBool("INSTANCE_BLOCKING_ENABLED", true),

		AuditLogEnabled:    getEnvBool("AUDIT_LOG_ENABLED", true),
		AuditLogMaxEntries: getEnvInt("AUDIT_LOG_MAX_ENTRIES", 10_000),

		RespectContentWarnings: getEnvBool("RESPECT_CONTENT_WARNINGS", true),

		DefaultInstance: os.Getenv("ACTIVITYPUB_DEFAULT_INSTANCE"),
		DefaultToken:    os.Getenv("ACTIVITYPUB_DEFAULT_TOKEN"),
		DefaultUsername: os.Getenv("ACTIVITYPUB_DEFAULT_USERNAME"),
		Accounts:        os.Getenv("ACTIVITYPUB_ACCOUNTS"),

		DynamicInstanceCacheTTL: getEnvMillis("DYNAMIC_INSTANCE_CACHE_TTL_MS", 3_600_000),

		CacheTTLActor:          5 * time.Minute,
		CacheTTLMedia:          time.Hour,
		NegativeCacheTTL:       60 * time.Second,
		InstanceBackoffCeiling: 5 * time.Second,
		GlobalConcurrency:      16,
		PerInstanceConcurrency: 4,
		BatchFanoutConcurrency: 5,
		MaxBatchSize:           20,
		MaxPostLength:          5000,
		MetricsHistorySize:     1000,
	}
	cfg.CacheTTLInstance = cfg.DynamicInstanceCacheTTL
	cfg.AuditRingSize = cfg.AuditLogMaxEntries
	if !cfg.AuditLogEnabled {
		cfg.AuditRingSize = 0
	}
	return cfg
}

// HasDefaultAccount reports whether a single-account env configuration was
// supplied via ACTIVITYPUB_DEFAULT_INSTANCE/ACTIVITYPUB_DEFAULT_TOKEN.
func (c *Config) HasDefaultAccount() bool {
	return c.DefaultInstance != "" && c.DefaultToken != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.ToLower(v) == "true" || v == "1"
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

func getEnvMillis(key string, fallbackMs int) time.Duration {
	n := getEnvInt(key, fallbackMs)
	return time.Duration(n) * time.Millisecond
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
