// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	ETL      ETLConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DayInfo describes one day-of-week dimension entry.
type DayInfo struct {
	Nombre string
	Orden  int
}

// ETLConfig holds the pipeline settings: the active academic period and
// curriculum plan, the recognized program codes, the day-code table and the
// classroom identifier pattern.
type ETLConfig struct {
	Periodo    string
	Plan       string
	Programas  []string
	DayMap     map[string]DayInfo
	SalonRegex *regexp.Regexp

	// Filesystem layout for the pipeline artifacts.
	IntakeDir  string // where source PDFs are dropped
	IntakeGlob string // filename pattern swept from the intake directory
	RawDir     string // PDFs moved here before extraction
	StagingDir string // staging.csv and fact_ready.csv

	// Cron spec for the scheduled full refresh.
	RefreshSpec string
}

// StagingCSV returns the path of the extractor output file.
func (c *ETLConfig) StagingCSV() string {
	return c.StagingDir + "/staging.csv"
}

// FactReadyCSV returns the path of the transformer output file.
func (c *ETLConfig) FactReadyCSV() string {
	return c.StagingDir + "/fact_ready.csv"
}

// defaultDayMap is the timetable day-code table: codes as printed by the
// faculty PDFs, with the ISO-ish ordering used to sort weekly views.
func defaultDayMap() map[string]DayInfo {
	return map[string]DayInfo{
		"L": {Nombre: "Lunes", Orden: 1},
		"A": {Nombre: "Martes", Orden: 2},
		"M": {Nombre: "Miércoles", Orden: 3},
		"J": {Nombre: "Jueves", Orden: 4},
		"V": {Nombre: "Viernes", Orden: 5},
		"S": {Nombre: "Sábado", Orden: 6},
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	salonPattern := getEnv("SALON_REGEX", `^[0-9A-Z]+/[0-9A-Z]+$`)
	salonRegex, err := regexp.Compile(salonPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid SALON_REGEX %q: %w", salonPattern, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "horarios"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		ETL: ETLConfig{
			Periodo:     getEnv("ETL_PERIODO", "OTONO2025"),
			Plan:        getEnv("ETL_PLAN", "SEMESTRAL"),
			Programas:   []string{"ITI", "ICC", "LCC"},
			DayMap:      defaultDayMap(),
			SalonRegex:  salonRegex,
			IntakeDir:   getEnv("ETL_INTAKE_DIR", "."),
			IntakeGlob:  getEnv("ETL_INTAKE_GLOB", "PA_*.pdf"),
			RawDir:      getEnv("ETL_RAW_DIR", "data/raw"),
			StagingDir:  getEnv("ETL_STAGING_DIR", "data/staging"),
			RefreshSpec: getEnv("ETL_REFRESH_CRON", "0 3 * * *"),
		},
	}

	if cfg.ETL.Periodo == "" {
		return nil, fmt.Errorf("ETL_PERIODO must not be empty")
	}
	if cfg.ETL.Plan == "" {
		return nil, fmt.Errorf("ETL_PLAN must not be empty")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
