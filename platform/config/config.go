// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the dispatch scheduler and worker pool.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDispatchTick() time.Duration
	GetDispatchBatchSize() int
	GetDispatchMaxAttempts() int
	GetDispatchRequeueAfter() time.Duration
	GetDailyNurtureCap() int
	GetSentJobRetention() time.Duration
	GetFailedJobRetention() time.Duration
}

// EmailConfig provides settings for the mail sender collaborator.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSendTimeout() time.Duration
	GetSiteURL() string
}

// WebhookConfig provides settings for engagement event ingestion.
type WebhookConfig interface {
	GetWebhookToken() string
}

// EngagementConfig provides the scoring thresholds.
// Thresholds are config-driven rather than fixed constants.
type EngagementConfig interface {
	GetHotWindow() time.Duration
	GetWarmWindow() time.Duration
	GetHotClickRate() float64
	GetWarmMinOpens() int64
}

// FunnelConfig provides funnel health alerting thresholds.
type FunnelConfig interface {
	GetFailedAlertThreshold() int64
	GetFailureRateAlertPct() float64
	GetPendingStaleAfter() time.Duration
	GetSnapshotTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
	AsynqConcurrency int

	DispatchTick         time.Duration
	DispatchBatchSize    int
	DispatchMaxAttempts  int
	DispatchRequeueAfter time.Duration
	DailyNurtureCap      int
	SentJobRetention     time.Duration
	FailedJobRetention   time.Duration

	EmailEnabled     bool
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SendTimeout      time.Duration
	SiteURL          string

	WebhookToken string

	HotWindow    time.Duration
	WarmWindow   time.Duration
	HotClickRate float64
	WarmMinOpens int64

	FailedAlertThreshold int64
	FailureRateAlertPct  float64
	PendingStaleAfter    time.Duration
	SnapshotTTL          time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                   { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool             { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string             { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int              { return c.AsynqConcurrency }
func (c *Config) GetDispatchTick() time.Duration        { return c.DispatchTick }
func (c *Config) GetDispatchBatchSize() int             { return c.DispatchBatchSize }
func (c *Config) GetDispatchMaxAttempts() int           { return c.DispatchMaxAttempts }
func (c *Config) GetDispatchRequeueAfter() time.Duration { return c.DispatchRequeueAfter }
func (c *Config) GetDailyNurtureCap() int               { return c.DailyNurtureCap }
func (c *Config) GetSentJobRetention() time.Duration    { return c.SentJobRetention }
func (c *Config) GetFailedJobRetention() time.Duration  { return c.FailedJobRetention }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool          { return c.EmailEnabled }
func (c *Config) GetEmailFromName() string       { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string    { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string            { return c.SMTPHost }
func (c *Config) GetSMTPPort() int               { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string        { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string        { return c.SMTPPassword }
func (c *Config) GetSendTimeout() time.Duration  { return c.SendTimeout }
func (c *Config) GetSiteURL() string             { return c.SiteURL }

// WebhookConfig implementation
func (c *Config) GetWebhookToken() string { return c.WebhookToken }

// EngagementConfig implementation
func (c *Config) GetHotWindow() time.Duration  { return c.HotWindow }
func (c *Config) GetWarmWindow() time.Duration { return c.WarmWindow }
func (c *Config) GetHotClickRate() float64     { return c.HotClickRate }
func (c *Config) GetWarmMinOpens() int64       { return c.WarmMinOpens }

// FunnelConfig implementation
func (c *Config) GetFailedAlertThreshold() int64     { return c.FailedAlertThreshold }
func (c *Config) GetFailureRateAlertPct() float64    { return c.FailureRateAlertPct }
func (c *Config) GetPendingStaleAfter() time.Duration { return c.PendingStaleAfter }
func (c *Config) GetSnapshotTTL() time.Duration      { return c.SnapshotTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "dispatch"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		DispatchTick:         mustDuration(getEnv("DISPATCH_TICK_INTERVAL", "2m")),
		DispatchBatchSize:    mustInt(getEnv("DISPATCH_BATCH_SIZE", "50")),
		DispatchMaxAttempts:  mustInt(getEnv("DISPATCH_MAX_ATTEMPTS", "5")),
		DispatchRequeueAfter: mustDuration(getEnv("DISPATCH_REQUEUE_AFTER", "15m")),
		DailyNurtureCap:      mustInt(getEnv("DAILY_NURTURE_CAP", "1")),
		SentJobRetention:     mustDuration(getEnv("DISPATCH_SENT_RETENTION", "336h")),
		FailedJobRetention:   mustDuration(getEnv("DISPATCH_FAILED_RETENTION", "720h")),

		EmailEnabled:     emailEnabled && smtpHost != "",
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Host Nurture"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SendTimeout:      mustDuration(getEnv("SEND_TIMEOUT", "15s")),
		SiteURL:          strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),

		WebhookToken: getEnv("WEBHOOK_TOKEN", ""),

		HotWindow:    mustDuration(getEnv("ENGAGEMENT_HOT_WINDOW", "168h")),
		WarmWindow:   mustDuration(getEnv("ENGAGEMENT_WARM_WINDOW", "336h")),
		HotClickRate: mustFloat(getEnv("ENGAGEMENT_HOT_CLICK_RATE", "0.2")),
		WarmMinOpens: int64(mustInt(getEnv("ENGAGEMENT_WARM_MIN_OPENS", "1"))),

		FailedAlertThreshold: int64(mustInt(getEnv("FUNNEL_FAILED_ALERT_THRESHOLD", "25"))),
		FailureRateAlertPct:  mustFloat(getEnv("FUNNEL_FAILURE_RATE_ALERT_PCT", "10")),
		PendingStaleAfter:    mustDuration(getEnv("FUNNEL_PENDING_STALE_AFTER", "30m")),
		SnapshotTTL:          mustDuration(getEnv("FUNNEL_SNAPSHOT_TTL", "30s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if emailEnabled && smtpHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.DispatchMaxAttempts < 1 {
		return nil, fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
