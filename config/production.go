// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Email      EmailConfig      `json:"email"`
	Messaging  MessagingConfig  `json:"messaging"`
	Phone      PhoneConfig      `json:"phone"`
	Alerts     AlertsConfig     `json:"alerts"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
	EnableSwagger   bool          `json:"enable_swagger"`
	TrustedProxies  []string      `json:"trusted_proxies"`
	ProxyHeader     string        `json:"proxy_header"`
}

type SecurityConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Shared secret the IVR provider sends with every webhook call
	IVRWebhookToken  string `json:"-"`
	IVRWebhookHeader string `json:"ivr_webhook_header"`
}

// JWTConfig validates tokens issued by the account service
type JWTConfig struct {
	SecretKey  string `json:"secret_key"`
	PublicKey  string `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
	AdminRole  string `json:"admin_role"`
}

type EmailConfig struct {
	Provider      string        `json:"provider"` // smtp, mock
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	FromEmail     string        `json:"from_email"`
	FromName      string        `json:"from_name"`
	UseSTARTTLS   bool          `json:"use_starttls"`
	RetryAttempts int           `json:"retry_attempts"`
	Timeout       time.Duration `json:"timeout"`
}

// MessagingConfig configures the messaging-app gateway
type MessagingConfig struct {
	Provider      string        `json:"provider"` // http, mock
	BaseURL       string        `json:"base_url"`
	InstanceID    string        `json:"instance_id"`
	APIToken      string        `json:"-"`
	RatePerMinute int           `json:"rate_per_minute"`
	Burst         int           `json:"burst"`
	RetryAttempts int           `json:"retry_attempts"`
	Timeout       time.Duration `json:"timeout"`
}

// PhoneConfig configures the outbound call list and the IVR session store
type PhoneConfig struct {
	Provider       string        `json:"provider"` // http, mock
	BaseURL        string        `json:"base_url"`
	APIKey         string        `json:"-"`
	ListID         string        `json:"list_id"`
	RetryAttempts  int           `json:"retry_attempts"`
	Timeout        time.Duration `json:"timeout"`
	SessionBackend string        `json:"session_backend"` // postgres, redis
	SessionTimeout time.Duration `json:"session_timeout"`
}

// AlertsConfig steers the matching and dispatch engine. The Default* values
// seed the admin settings row when none exists yet.
type AlertsConfig struct {
	Timezone         string        `json:"timezone"`
	SchedulerEnabled bool          `json:"scheduler_enabled"`
	TickSpec         string        `json:"tick_spec"`
	SweepLookback    time.Duration `json:"sweep_lookback"`
	ScanWorkers      int           `json:"scan_workers"`
	WeeklyDigestDay  int           `json:"weekly_digest_day"`
	MatchTTL         time.Duration `json:"match_ttl"`
	RedisPrefix      string        `json:"redis_prefix"`

	DefaultCheckFrequencyMinutes int    `json:"default_check_frequency_minutes"`
	DefaultSendMode              string `json:"default_send_mode"`
	DefaultMaxCallsPerDay        int    `json:"default_max_calls_per_day"`
	DefaultQuietHoursStart       string `json:"default_quiet_hours_start"`
	DefaultQuietHoursEnd         string `json:"default_quiet_hours_end"`
	DefaultPhoneServiceActive    bool   `json:"default_phone_service_active"`
}

type LoggingConfig struct {
	Level      string `json:"level"` // debug, info, warn, error
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1024*1024),
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
			EnableSwagger:   getEnvBool("SERVER_ENABLE_SWAGGER", false),
			TrustedProxies:  getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:     getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			IVRWebhookToken:  getEnvString("IVR_WEBHOOK_TOKEN", ""),
			IVRWebhookHeader: getEnvString("IVR_WEBHOOK_HEADER", "X-IVR-Token"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			Issuer:     getEnvString("JWT_ISSUER", "jobboard"),
			Audience:   getEnvString("JWT_AUDIENCE", "jobboard-api"),
			AdminRole:  getEnvString("JWT_ADMIN_ROLE", "admin"),
		},
		Email: EmailConfig{
			Provider:      getEnvString("EMAIL_PROVIDER", "mock"),
			Host:          getEnvString("EMAIL_HOST", "smtp.gmail.com"),
			Port:          getEnvInt("EMAIL_PORT", 587),
			Username:      getEnvString("EMAIL_USERNAME", ""),
			Password:      getEnvString("EMAIL_PASSWORD", ""),
			FromEmail:     getEnvString("EMAIL_FROM_EMAIL", "alerts@jobboard.local"),
			FromName:      getEnvString("EMAIL_FROM_NAME", "Job Alerts"),
			UseSTARTTLS:   getEnvBool("EMAIL_USE_STARTTLS", true),
			RetryAttempts: getEnvInt("EMAIL_RETRY_ATTEMPTS", 3),
			Timeout:       getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Messaging: MessagingConfig{
			Provider:      getEnvString("MESSAGING_PROVIDER", "mock"),
			BaseURL:       getEnvString("MESSAGING_BASE_URL", ""),
			InstanceID:    getEnvString("MESSAGING_INSTANCE_ID", ""),
			APIToken:      getEnvString("MESSAGING_API_TOKEN", ""),
			RatePerMinute: getEnvInt("MESSAGING_RATE_PER_MINUTE", 60),
			Burst:         getEnvInt("MESSAGING_BURST", 5),
			RetryAttempts: getEnvInt("MESSAGING_RETRY_ATTEMPTS", 3),
			Timeout:       getEnvDuration("MESSAGING_TIMEOUT", 15*time.Second),
		},
		Phone: PhoneConfig{
			Provider:       getEnvString("PHONE_PROVIDER", "mock"),
			BaseURL:        getEnvString("PHONE_BASE_URL", ""),
			APIKey:         getEnvString("PHONE_API_KEY", ""),
			ListID:         getEnvString("PHONE_LIST_ID", ""),
			RetryAttempts:  getEnvInt("PHONE_RETRY_ATTEMPTS", 3),
			Timeout:        getEnvDuration("PHONE_TIMEOUT", 15*time.Second),
			SessionBackend: getEnvString("PHONE_SESSION_BACKEND", "postgres"),
			SessionTimeout: getEnvDuration("PHONE_SESSION_TIMEOUT", 30*time.Minute),
		},
		Alerts: AlertsConfig{
			Timezone:                     getEnvString("ALERTS_TIMEZONE", utils.DefaultAlertTimezone),
			SchedulerEnabled:             getEnvBool("ALERTS_SCHEDULER_ENABLED", true),
			TickSpec:                     getEnvString("ALERTS_TICK_INTERVAL", "@every 1m"),
			SweepLookback:                getEnvDuration("ALERTS_SWEEP_LOOKBACK", 24*time.Hour),
			ScanWorkers:                  getEnvInt("ALERTS_SCAN_WORKERS", 8),
			WeeklyDigestDay:              getEnvInt("ALERTS_WEEKLY_DIGEST_DAY", 0),
			MatchTTL:                     getEnvDuration("ALERTS_MATCH_TTL", utils.DefaultMatchTTL),
			RedisPrefix:                  getEnvString("ALERTS_REDIS_PREFIX", "alerts:"),
			DefaultCheckFrequencyMinutes: getEnvInt("ALERTS_CHECK_FREQUENCY_MINUTES", 5),
			DefaultSendMode:              getEnvString("ALERTS_SEND_MODE", "immediate"),
			DefaultMaxCallsPerDay:        getEnvInt("ALERTS_MAX_CALLS_PER_DAY", 0),
			DefaultQuietHoursStart:       getEnvString("ALERTS_QUIET_HOURS_START", ""),
			DefaultQuietHoursEnd:         getEnvString("ALERTS_QUIET_HOURS_END", ""),
			DefaultPhoneServiceActive:    getEnvBool("ALERTS_PHONE_SERVICE_ACTIVE", true),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/scheduler.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "jobboard:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate channel transports
	if cfg.Email.Provider == "smtp" {
		if cfg.Email.Host == "" {
			errors = append(errors, "EMAIL_HOST is required for the smtp provider")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required for the smtp provider")
		}
	}
	if cfg.Messaging.Provider == "http" {
		if cfg.Messaging.BaseURL == "" || cfg.Messaging.APIToken == "" {
			errors = append(errors, "MESSAGING_BASE_URL and MESSAGING_API_TOKEN are required for the http provider")
		}
		if cfg.Messaging.RatePerMinute <= 0 {
			errors = append(errors, "MESSAGING_RATE_PER_MINUTE must be positive")
		}
	}
	if cfg.Phone.Provider == "http" && (cfg.Phone.BaseURL == "" || cfg.Phone.APIKey == "") {
		errors = append(errors, "PHONE_BASE_URL and PHONE_API_KEY are required for the http provider")
	}
	if cfg.Phone.SessionBackend != "postgres" && cfg.Phone.SessionBackend != "redis" {
		errors = append(errors, "PHONE_SESSION_BACKEND must be postgres or redis")
	}
	if cfg.Phone.SessionBackend == "redis" && !cfg.Cache.Enabled {
		errors = append(errors, "PHONE_SESSION_BACKEND=redis requires CACHE_ENABLED")
	}

	// Validate alert engine configuration
	if _, err := time.LoadLocation(cfg.Alerts.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("ALERTS_TIMEZONE is not a known zone: %v", err))
	}
	if cfg.Alerts.TickSpec == "" {
		errors = append(errors, "ALERTS_TICK_INTERVAL is required")
	}
	if cfg.Alerts.ScanWorkers <= 0 {
		errors = append(errors, "ALERTS_SCAN_WORKERS must be positive")
	}
	if cfg.Alerts.WeeklyDigestDay < 0 || cfg.Alerts.WeeklyDigestDay > 6 {
		errors = append(errors, "ALERTS_WEEKLY_DIGEST_DAY must be between 0 (Sunday) and 6")
	}
	if cfg.Alerts.DefaultSendMode != "immediate" && cfg.Alerts.DefaultSendMode != "batch" {
		errors = append(errors, "ALERTS_SEND_MODE must be immediate or batch")
	}
	if cfg.Alerts.DefaultCheckFrequencyMinutes <= 0 {
		errors = append(errors, "ALERTS_CHECK_FREQUENCY_MINUTES must be positive")
	}
	if cfg.Alerts.DefaultMaxCallsPerDay < 0 {
		errors = append(errors, "ALERTS_MAX_CALLS_PER_DAY must not be negative")
	}
	// Alert dispatch state lives in redis
	if cfg.Alerts.SchedulerEnabled && (!cfg.Cache.Enabled || cfg.Cache.RedisURL == "") {
		errors = append(errors, "ALERTS_SCHEDULER_ENABLED requires CACHE_ENABLED and CACHE_REDIS_URL")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
