package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revo-market/contracts/internal/fees"
)

// ModeSimulation runs the vault against the in-process chain, router and staking pool.
const ModeSimulation = "simulation"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Mode selects the deployment the bot runs against. Only "simulation" exists.
	Mode string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON switches from the console writer to JSON lines.
	LogJSON bool
	// LogFile optionally mirrors log output to a file.
	LogFile string

	// CompoundInterval is the time between compounder bot cycles.
	CompoundInterval time.Duration
	// CompoundDeadlineWindow is added to the current time to form each compound deadline.
	CompoundDeadlineWindow time.Duration
	// CompoundSlippagePercent is the tolerated shortfall against quoted swap outputs, in percent.
	CompoundSlippagePercent float64
	// CompoundMaxRetries bounds resubmissions of a compound whose deadline passed.
	CompoundMaxRetries uint64

	// RewardEmissionInterval is how often the simulated emitter funds the staking pool.
	RewardEmissionInterval time.Duration
	// RewardEmissionAmount is the whole-token amount funded per reward token per emission.
	RewardEmissionAmount float64

	// FeeMode optionally switches the vault's fee schedule: static, dynamic or bounty. Empty
	// keeps the stored parameters.
	FeeMode string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Every variable has a default except the database credentials, which are required once
// DB_HOST is set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode = getEnvOrDefault("FARMBOT_MODE", ModeSimulation)
	if Mode != ModeSimulation {
		return fmt.Errorf("FARMBOT_MODE must be %q, got %q", ModeSimulation, Mode)
	}

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = getEnvOrDefault("LOG_FILE", "")
	if LogJSON, err = getEnvAsBool("LOG_JSON", false); err != nil {
		return err
	}

	if CompoundInterval, err = getEnvAsDuration("COMPOUND_INTERVAL", time.Minute); err != nil {
		return err
	}
	if CompoundDeadlineWindow, err = getEnvAsDuration("COMPOUND_DEADLINE_WINDOW", 5*time.Minute); err != nil {
		return err
	}
	if CompoundSlippagePercent, err = getEnvAsFloat64("COMPOUND_SLIPPAGE_PERCENT", 1.0); err != nil {
		return err
	}
	if CompoundSlippagePercent < 0 || CompoundSlippagePercent > 100 {
		return fmt.Errorf("COMPOUND_SLIPPAGE_PERCENT must be between 0 and 100, got: %v", CompoundSlippagePercent)
	}
	if CompoundMaxRetries, err = getEnvAsUint64("COMPOUND_MAX_RETRIES", 3); err != nil {
		return err
	}

	if RewardEmissionInterval, err = getEnvAsDuration("REWARD_EMISSION_INTERVAL", 30*time.Second); err != nil {
		return err
	}
	if RewardEmissionAmount, err = getEnvAsFloat64("REWARD_EMISSION_AMOUNT", 100); err != nil {
		return err
	}
	if RewardEmissionAmount < 0 {
		return fmt.Errorf("REWARD_EMISSION_AMOUNT cannot be negative, got: %v", RewardEmissionAmount)
	}

	FeeMode = getEnvOrDefault("FEE_MODE", "")
	switch FeeMode {
	case "", fees.ModeStatic, fees.ModeDynamic, fees.ModeBountyOnly:
	default:
		return fmt.Errorf("FEE_MODE must be one of %s, %s or %s, got %q", fees.ModeStatic, fees.ModeDynamic, fees.ModeBountyOnly, FeeMode)
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Mode", Mode).
		Dur("CompoundInterval", CompoundInterval).
		Float64("CompoundSlippagePercent", CompoundSlippagePercent).
		Bool("Database", DatabaseEnabled()).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to def when unset.
func getEnvOrDefault(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if invalid.
func getEnvAsUint64(key string, def uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if invalid.
func getEnvAsFloat64(key string, def float64) (float64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a positive time.Duration, e.g. "30s".
func getEnvAsDuration(key string, def time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, def bool) (bool, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
