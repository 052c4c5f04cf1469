package config

import (
	"errors"
	"strconv"

	"github.com/revo-market/contracts/internal/state"
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port the HTTP API listens on.
	WebPort string

	// DBHost selects the Postgres store; empty keeps cycle history in memory.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	if _, err := strconv.ParseUint(WebPort, 10, 16); err != nil {
		return errors.New("environment variable WEB_PORT must be a valid port, got: " + WebPort)
	}

	DBHost = getEnvOrDefault("DB_HOST", "")
	port, err := getEnvAsUint64("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBPort = int(port)
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	DBUser, DBName = "", ""
	if DBHost != "" {
		if DBUser, err = getEnv("DB_USER"); err != nil {
			return err
		}
		if DBName, err = getEnv("DB_NAME"); err != nil {
			return err
		}
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("DBHost", DBHost).
		Str("DBName", DBName).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// DatabaseEnabled reports whether cycle history goes to Postgres.
func DatabaseEnabled() bool {
	return DBHost != ""
}

// Database returns the connection parameters of the Postgres store.
func Database() state.DBConfig {
	return state.DBConfig{
		Host:     DBHost,
		Port:     DBPort,
		User:     DBUser,
		Password: DBPassword,
		DBName:   DBName,
		SSLMode:  DBSSLMode,
	}
}
