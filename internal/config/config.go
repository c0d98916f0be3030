// Package config loads application configuration from environment
// variables, one file per concern: core settings here, rate limiting,
// count cache and sweeper settings in their own files, and the Redis
// client constructor in redis.go.
package config

import (
	"log"
	"os"
)

// Config holds the core runtime configuration. Each field corresponds to an
// environment variable; required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
type Config struct {
	Env               string // application environment (e.g. "dev", "prod")
	Port              string // HTTP port to listen on
	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	JWTSecret         string // secret verifying organizer bearer tokens
	HoldMinutes       int    // default reservation hold length in minutes
	MaxHoldMinutes    int    // longest hold a client may request
	MaxTicketsPerCall int    // per-call cap on requested ticket indices
}

// Load reads configuration values from environment variables.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		HoldMinutes:       envInt("RESERVATION_HOLD_MINUTES", 15),
		MaxHoldMinutes:    envInt("RESERVATION_MAX_HOLD_MINUTES", 120),
		MaxTicketsPerCall: envInt("RESERVATION_MAX_TICKETS", 100),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
