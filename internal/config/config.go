package config

import (
	"os"
	"strconv"
	"time"

	"github.com/franciosse/piscine-organique-backend/internal/logger"
)

type Config struct {
	HTTPAddr string

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	// WebhookSecret authenticates payment provider deliveries.
	WebhookSecret string

	// PendingGraceWindow is how long a pending purchase still grants course
	// access while the provider finalizes the payment.
	PendingGraceWindow time.Duration

	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresName     string

	// RedisAddr empty means lesson orders are recomputed per request.
	RedisAddr string
}

func Load(log *logger.Logger) Config {
	graceMinutes := GetEnvAsInt("PENDING_GRACE_WINDOW_MINUTES", 120, log)
	accessTokenTTLSeconds := GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	return Config{
		HTTPAddr:           GetEnv("HTTP_ADDR", ":8080", log),
		JWTSecretKey:       GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL:     time.Duration(accessTokenTTLSeconds) * time.Second,
		WebhookSecret:      GetEnv("PAYMENT_WEBHOOK_SECRET", "", log),
		PendingGraceWindow: time.Duration(graceMinutes) * time.Minute,
		PostgresUser:       GetEnv("POSTGRES_USER", "postgres", log),
		PostgresPassword:   GetEnv("POSTGRES_PASSWORD", "postgres", log),
		PostgresHost:       GetEnv("POSTGRES_HOST", "localhost", log),
		PostgresPort:       GetEnv("POSTGRES_PORT", "5432", log),
		PostgresName:       GetEnv("POSTGRES_NAME", "piscine", log),
		RedisAddr:          GetEnv("REDIS_ADDR", "", log),
	}
}

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		// Secrets and passwords are logged by name only, never by value.
		shown := val
		if logger.IsSensitiveKey(key) {
			shown = "[REDACTED]"
		}
		log.Debug("Environment variable found, using environment", "environment", shown)
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "providedVal", valStr, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}
