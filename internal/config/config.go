package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	MinIO   MinIOConfig
	Session SessionConfig
	Server  ServerConfig
	Staging StagingConfig
	Mail    MailConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SessionConfig struct {
	Secret   string
	Validity time.Duration
}

type ServerConfig struct {
	Port string
}

// StagingConfig drives the temporary-upload area: freshly uploaded
// blobs wait in TempDir until either promoted to permanent storage or
// swept once older than TTL.
type StagingConfig struct {
	TempDir       string
	TTL           time.Duration
	SweepInterval time.Duration
}

type MailConfig struct {
	Sender string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "pec"),
			Password: getEnv("DB_PASSWORD", "pec_secret"),
			Name:     getEnv("DB_NAME", "pec"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "pec"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "pec_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "pec-nodes"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Session: SessionConfig{
			Secret:   getEnv("SESSION_SECRET", "change-me-in-production"),
			Validity: getEnvAsDuration("SESSION_VALIDITY", 24*time.Hour),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Staging: StagingConfig{
			TempDir:       getEnv("STAGING_TEMP_DIR", "./tmp"),
			TTL:           getEnvAsDuration("STAGING_TTL", 30*time.Second),
			SweepInterval: getEnvAsDuration("STAGING_SWEEP_INTERVAL", 10*time.Second),
		},
		Mail: MailConfig{
			Sender: getEnv("MAIL_SENDER", "noreply@pec.local"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
