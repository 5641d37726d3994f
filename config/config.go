package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	WebRTC   WebRTCConfig
	TURN     TURNConfig
	AWS      AWSConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server and process settings.
type ServerConfig struct {
	Port        string
	LogLevel    string
	CORSOrigins []string
	NumWorkers  int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return c.URL
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds the symmetric secret used to verify handshake bearer tokens.
type AuthConfig struct {
	Secret string
}

// WebRTCConfig holds SFU listen/announce settings.
type WebRTCConfig struct {
	ListenIP    string
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
}

// TURNConfig holds TURN credential-minting settings.
type TURNConfig struct {
	Secret     string
	ServerURL  string
	STUNURL    string
}

// AWSConfig holds AWS credentials and the transcript-export bucket.
type AWSConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	TranscriptsBucket  string
	PresignExpireMinutes int
}

// EmailConfig holds SMTP settings for the reminder scheduler.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// MeetingCodePattern is the required shape of a meeting code: abc-defg-hij.
var MeetingCodePattern = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			CORSOrigins: splitTrim(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
			NumWorkers:  getEnvInt("NUM_WORKERS", 0),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "postgres://localhost:5432/meetrelay?sslmode=disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Secret: getEnv("AUTH_SECRET", ""),
		},
		WebRTC: WebRTCConfig{
			ListenIP:    getEnv("LISTEN_IP", "0.0.0.0"),
			AnnouncedIP: getEnv("ANNOUNCED_IP", "127.0.0.1"),
			MinPort:     uint16(getEnvInt("RTC_MIN_PORT", 40000)),
			MaxPort:     uint16(getEnvInt("RTC_MAX_PORT", 49999)),
		},
		TURN: TURNConfig{
			Secret:    getEnv("TURN_SECRET", ""),
			ServerURL: getEnv("TURN_SERVER_URL", ""),
			STUNURL:   getEnv("STUN_URL", "stun:stun.l.google.com:19302"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", "meetrelay-transcripts"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("SMTP_FROM", "noreply@example.com"),
			FromName:    getEnv("SMTP_FROM_NAME", "Meetrelay"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
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
