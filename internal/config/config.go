package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	AppEnv     string

	DBDriver         string
	DBDataSourceName string
	MigrationsDir    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rotating-code parameters. Both the display side and the validation side
	// read these; they must match across deployments of the two.
	WindowSeconds int64
	SkewWindows   int
	CodeDigits    int

	// GraceAfterStart is how long past the event start a ticket still
	// validates. SweepInterval drives the background pass that voids tickets
	// lapsed beyond that grace.
	GraceAfterStart time.Duration
	SweepInterval   time.Duration

	TicketCacheTTL time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: could not load .env file, relying on environment")
	}

	config := &Config{}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.ServerPort = p
		}
	}
	if config.ServerPort == 0 {
		config.ServerPort = 8041
	}
	config.AppEnv = getEnvOrDefault("APP_ENV", "development")

	config.DBDriver = "postgres"

	dbHost := getEnvOrDefault("TICKETS_DB_HOST", "localhost")
	dbPort := getEnvOrDefault("TICKETS_DB_PORT", "5432")
	dbName := getEnvOrDefault("TICKETS_DB_DATABASE", "ticketsDB")
	dbUser := getEnvOrDefault("TICKETS_DB_USERNAME", "root")
	dbPassword := getEnvOrDefault("TICKETS_DB_PASSWORD", "1234")

	config.DBDataSourceName = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)
	config.MigrationsDir = getEnvOrDefault("MIGRATIONS_DIR", "migrations")

	redisHost := getEnvOrDefault("TICKETS_REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("TICKETS_REDIS_PORT", "6379")
	config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	config.RedisPassword = os.Getenv("TICKETS_REDIS_PASSWORD")
	config.RedisDB = getEnvIntOrDefault("TICKETS_REDIS_DB", 0)

	config.WindowSeconds = int64(getEnvIntOrDefault("TICKET_WINDOW_SECONDS", 30))
	config.SkewWindows = getEnvIntOrDefault("TICKET_SKEW_WINDOWS", 1)
	config.CodeDigits = getEnvIntOrDefault("TICKET_CODE_DIGITS", 8)

	config.GraceAfterStart = getEnvDurationOrDefault("TICKET_GRACE_AFTER_START", 6*time.Hour)
	config.SweepInterval = getEnvDurationOrDefault("TICKET_SWEEP_INTERVAL", time.Hour)
	config.TicketCacheTTL = getEnvDurationOrDefault("TICKET_CACHE_TTL", 5*time.Minute)

	if config.WindowSeconds <= 0 {
		return nil, fmt.Errorf("TICKET_WINDOW_SECONDS must be positive")
	}
	if config.SkewWindows < 0 {
		return nil, fmt.Errorf("TICKET_SKEW_WINDOWS must not be negative")
	}
	if config.CodeDigits < 6 || config.CodeDigits > 9 {
		return nil, fmt.Errorf("TICKET_CODE_DIGITS must be between 6 and 9")
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
