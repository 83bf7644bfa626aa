// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"loungebackend/internal/billing"
	"loungebackend/internal/data"
	"loungebackend/internal/logger"
)

const (
	defaultHost        = "localhost"
	defaultPort        = "8080"
	defaultSQLitePath  = "./data/lounge.db"
	defaultCurrency    = "L.E"
	defaultSessionTTL  = 12 * time.Hour
	defaultSweepPeriod = 5 * time.Minute
)

// AllowedOrigin is the CORS origin sent with every response.
var AllowedOrigin string

//
// --- Utility Helpers ---
//

// GetEnvBasedSetting returns BASE_DEV or BASE_PROD depending on ENVIRONMENT,
// falling back to plain BASE.
func GetEnvBasedSetting(base string) string {
	if v := os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(environment()))); v != "" {
		return v
	}
	return os.Getenv(base)
}

func environment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return env
}

// Helper: log which environment is running
func LogCurrentEnvironment() {
	if environment() == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in production environment")
	}
}

func settingOr(base, def string) string {
	if v := GetEnvBasedSetting(base); v != "" {
		return v
	}
	return def
}

//
// --- Loaders ---
//

// LoadEnv reads .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	debug, _ := strconv.ParseBool(GetEnvBasedSetting("LOG_DEBUG"))

	return logger.Config{
		LogsDirectory: settingOr("LOGS_DIRECTORY", "./logs"),
		LogFileFormat: settingOr("LOG_FILE_FORMAT", "lounge_%s.log"),
		TimeZone:      settingOr("TIME_ZONE", "Local"),
		Debug:         debug,
	}
}

// ServerAddress returns host:port for the HTTP listener.
func ServerAddress() string {
	return settingOr("SERVER_HOST", defaultHost) + ":" + settingOr("SERVER_PORT", defaultPort)
}

// StoreConfig selects the snapshot backend.
func StoreConfig() data.Config {
	redisDB := 0
	if raw := GetEnvBasedSetting("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			logger.LogWarn("Invalid REDIS_DB %q, using 0", raw)
		} else {
			redisDB = n
		}
	}

	return data.Config{
		Backend:       settingOr("STORE_BACKEND", data.BackendSQLite),
		SQLitePath:    settingOr("SQLITE_PATH", defaultSQLitePath),
		RedisAddr:     GetEnvBasedSetting("REDIS_ADDR"),
		RedisPassword: GetEnvBasedSetting("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RedisPrefix:   GetEnvBasedSetting("REDIS_PREFIX"),
	}
}

// BillingConfig reads rates, rooms and stamp formatting. Invalid values are
// logged and replaced with the defaults.
func BillingConfig() billing.Config {
	cfg := billing.DefaultConfig()

	cfg.RoomRate = rateSetting("ROOM_RATE_PER_MINUTE", cfg.RoomRate)
	cfg.BilliardRate = rateSetting("BILLIARD_RATE_PER_MINUTE", cfg.BilliardRate)

	if raw := GetEnvBasedSetting("ROOM_NAMES"); raw != "" {
		var rooms []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				rooms = append(rooms, name)
			}
		}
		if len(rooms) > 0 {
			cfg.Rooms = rooms
		}
	}

	if layout := GetEnvBasedSetting("CLOCK_LAYOUT"); layout != "" {
		cfg.ClockLayout = layout
	}

	if tz := GetEnvBasedSetting("TIME_ZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			logger.LogWarn("Invalid TIME_ZONE %q, using local time: %v", tz, err)
		} else {
			cfg.Location = loc
		}
	}

	return cfg
}

func rateSetting(base string, def decimal.Decimal) decimal.Decimal {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return def
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !rate.IsPositive() {
		logger.LogWarn("Invalid %s %q, using default %s", base, raw, def.String())
		return def
	}
	return rate
}

// LoadCORSConfig loads CORS settings
func LoadCORSConfig() {
	AllowedOrigin = GetEnvBasedSetting("ALLOWED_ORIGIN")
	if AllowedOrigin == "" {
		AllowedOrigin = "*"
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins)")
	} else {
		logger.LogInfo("Allowed Origin: %s", AllowedOrigin)
	}
}

//
// --- Getters (exported) ---
//

// InventorySeedFile is a JSON list of items loaded when no inventory
// snapshot exists. Empty means start with an empty catalog.
func InventorySeedFile() string {
	return GetEnvBasedSetting("INVENTORY_SEED_FILE")
}

func CurrencyLabel() string {
	return settingOr("CURRENCY_LABEL", defaultCurrency)
}

// SessionTTL is how long a sign-in stays valid.
func SessionTTL() time.Duration {
	return minutesSetting("SESSION_TTL_MINUTES", defaultSessionTTL)
}

// SessionSweepInterval is how often expired sessions are dropped.
func SessionSweepInterval() time.Duration {
	return minutesSetting("SESSION_SWEEP_MINUTES", defaultSweepPeriod)
}

func minutesSetting(base string, def time.Duration) time.Duration {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return def
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		logger.LogWarn("Invalid %s %q, using default %v", base, raw, def)
		return def
	}
	return time.Duration(minutes) * time.Minute
}
