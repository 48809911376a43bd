package config

import "time"

// DashboardConfig holds runtime configuration for the dashboard API service.
type DashboardConfig struct {
	Environment       string
	Addr              string
	DatabaseURL       string
	MigrationsDir     string
	SessionSecret     string
	SessionTTL        time.Duration
	AdminPasswordHash string

	HostingAPIBase    string
	HostingAccountID  string
	HostingAPIToken   string
	HostingTimeout    time.Duration
	ProjectPrefix     string
	ProductionBranch  string
	PagesDomainSuffix string

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadDashboardConfig constructs a DashboardConfig from environment variables.
func LoadDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Environment:       GetString("APP_ENV", "development"),
		Addr:              GetString("API_ADDR", ":4000"),
		DatabaseURL:       GetString("DATABASE_URL", "postgres://draftline:draftline@db:5432/draftline?sslmode=disable"),
		MigrationsDir:     GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		SessionSecret:     GetString("SESSION_SECRET", "supersecuresecret"),
		SessionTTL:        GetDuration("SESSION_TTL", 12*time.Hour),
		AdminPasswordHash: GetString("ADMIN_PASSWORD_HASH", ""),

		HostingAPIBase:    GetString("CLOUDFLARE_API_BASE", "https://api.cloudflare.com/client/v4"),
		HostingAccountID:  GetString("CLOUDFLARE_ACCOUNT_ID", ""),
		HostingAPIToken:   GetString("CLOUDFLARE_API_TOKEN", ""),
		HostingTimeout:    GetDuration("CLOUDFLARE_TIMEOUT", 2*time.Minute),
		ProjectPrefix:     GetString("HOSTING_PROJECT_PREFIX", "dl-"),
		ProductionBranch:  GetString("HOSTING_PRODUCTION_BRANCH", "main"),
		PagesDomainSuffix: GetString("PAGES_DOMAIN_SUFFIX", ".pages.dev"),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
