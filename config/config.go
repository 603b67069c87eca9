package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	Email       EmailConfig
	Competition CompetitionConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	AWS         AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	TrustedProxies     string // comma-separated IPs/CIDRs; empty trusts none
	Environment        string
}

// StorageConfig locates the registration log.
type StorageConfig struct {
	RegistrationsFile string
}

// LogConfig controls zap output.
type LogConfig struct {
	Dir   string // empty = stdout only
	Level string
}

// EmailConfig for the SMTP transport. Missing credentials disable notifications.
type EmailConfig struct {
	User          string
	Pass          string
	SMTPHost      string
	SMTPPort      int
	FromName      string
	OperatorEmail string
	SupportEmail  string
	TimeoutSec    int
}

// Enabled reports whether SMTP credentials are present.
func (c EmailConfig) Enabled() bool {
	return c.User != "" && c.Pass != ""
}

// Timeout returns the bounded dispatch timeout.
func (c EmailConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// CompetitionConfig is rendered into confirmation emails.
type CompetitionConfig struct {
	Name     string
	Short    string
	Date     string
	Time     string
	Format   string
	Duration string
}

// RedisConfig holds Redis connection settings. Empty Addr selects the in-memory limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds per-IP request budgets.
type RateLimitConfig struct {
	Register  int
	General   int
	WindowMin int
	Disabled  bool
}

// Window returns the rate limit window.
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowMin <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.WindowMin) * time.Minute
}

// AWSConfig holds credentials and the snapshot bucket.
type AWSConfig struct {
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	BackupBucket      string
	BackupIntervalMin int
}

// BackupInterval returns how often the worker uploads a snapshot.
func (c AWSConfig) BackupInterval() time.Duration {
	if c.BackupIntervalMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.BackupIntervalMin) * time.Minute
}

const defaultOrigins = "https://online-astronomy-competition.web.app," +
	"https://online-astronomy-competition.firebaseapp.com," +
	"http://localhost:3000,http://localhost:3001,http://localhost:5173,http://localhost:8080"

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	emailUser := getEnv("EMAIL_USER", "")

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", defaultOrigins),
			TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),
			Environment:        getEnv("ENVIRONMENT", "development"),
		},
		Storage: StorageConfig{
			RegistrationsFile: getEnv("REGISTRATIONS_FILE", "registrations.csv"),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Email: EmailConfig{
			User:          emailUser,
			Pass:          getEnv("EMAIL_PASS", ""),
			SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			FromName:      getEnv("EMAIL_FROM_NAME", "OAC Team"),
			OperatorEmail: getEnv("OPERATOR_EMAIL", emailUser),
			SupportEmail:  getEnv("SUPPORT_EMAIL", "astronomycompetition@gmail.com"),
			TimeoutSec:    getEnvInt("EMAIL_TIMEOUT_SEC", 15),
		},
		Competition: CompetitionConfig{
			Name:     getEnv("COMPETITION_NAME", "Online Astronomy Competition"),
			Short:    getEnv("COMPETITION_SHORT_NAME", "OAC"),
			Date:     getEnv("COMPETITION_DATE", "August 30, 2025"),
			Time:     getEnv("COMPETITION_TIME", "12:00 - 23:59 Eastern Standard Time"),
			Format:   getEnv("COMPETITION_FORMAT", "Online Competition"),
			Duration: getEnv("COMPETITION_DURATION", "12-hour window"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Register:  getEnvInt("RATE_LIMIT_REGISTER", 5),
			General:   getEnvInt("RATE_LIMIT_GENERAL", 100),
			WindowMin: getEnvInt("RATE_LIMIT_WINDOW_MIN", 15),
			Disabled:  getEnvBool("RATE_LIMIT_DISABLED", false),
		},
		AWS: AWSConfig{
			Region:            getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BackupBucket:      getEnv("AWS_S3_BACKUP_BUCKET", ""),
			BackupIntervalMin: getEnvInt("BACKUP_INTERVAL_MIN", 60),
		},
	}
	return cfg, nil
}

// Origins returns the CORS allow-list as a slice.
func (c ServerConfig) Origins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

// Proxies returns the proxies whose forwarding headers are believed. Nil means
// the client address is always the socket peer.
func (c ServerConfig) Proxies() []string {
	return splitTrim(c.TrustedProxies, ",")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
