package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/google/uuid"
)

func getEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetDbConfigFromEnv reads the postgres settings used by the database backed tests.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(getEnvWithDefault("GOVERNOR_DATABASE_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:     getEnvWithDefault("GOVERNOR_DATABASE_HOST", "localhost"),
		Port:     port,
		User:     getEnvWithDefault("GOVERNOR_DATABASE_USER", "governor"),
		Password: os.Getenv("GOVERNOR_DATABASE_PASSWORD"),
		DbName:   getEnvWithDefault("GOVERNOR_DATABASE_DB_NAME", "governor"),
	}
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("governor_test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// PostgresTestsEnabled gates tests that need a running postgres instance.
func PostgresTestsEnabled() bool {
	return os.Getenv("TEST_POSTGRES") == "true"
}
