package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	PVGIS    PVGISConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type DataConfig struct {
	// ProjectsDir is the root of the per-project directory tree.
	ProjectsDir string
}

type DatabaseConfig struct {
	// DSN is optional; lookup and archive features are disabled without it.
	DSN string
}

type RedisConfig struct {
	// Addr is optional; progress events are disabled without it.
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	// CredentialsPath is optional; the API runs unauthenticated without it.
	CredentialsPath string
}

type PVGISConfig struct {
	Endpoint string
	// RatePerSec limits outgoing PVGIS calls.
	RatePerSec float64
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Data: DataConfig{
			ProjectsDir: getEnv("DATA_DIR", "data/projects"),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		PVGIS: PVGISConfig{
			Endpoint:   getEnv("PVGIS_ENDPOINT", "https://re.jrc.ec.europa.eu/api/v5_2/seriescalc"),
			RatePerSec: getEnvAsFloat("PVGIS_RATE_PER_SEC", 0.5),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Data.ProjectsDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.PVGIS.Endpoint == "" {
		return fmt.Errorf("PVGIS_ENDPOINT is required")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}
