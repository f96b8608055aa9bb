package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jesses-code-adventures/progress/internal/logger"
)

type Config struct {
	AFASBaseURL  string
	AFASToken    string
	AFASPageSize int
	AFASTimeout  time.Duration
	SchemaFile   string

	FetchInvoiced     bool
	SubmitConcurrency int

	InvoiceVATCode  string
	InvoiceItemCode string
	InvoiceUnit     string

	DatabaseURL    string
	DatabaseDriver string

	HTTPPort string
	APIKey   string

	LogLevel  string
	LogFormat string
	LogOutput string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	pageSize, err := getEnvInt("AFAS_PAGE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	concurrency, err := getEnvInt("SUBMIT_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(getEnv("AFAS_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AFAS_TIMEOUT: %w", err)
	}

	cfg := &Config{
		AFASBaseURL:       getEnv("AFAS_BASE_URL", ""),
		AFASToken:         getEnv("AFAS_TOKEN", ""),
		AFASPageSize:      pageSize,
		AFASTimeout:       timeout,
		SchemaFile:        getEnv("AFAS_SCHEMA_FILE", ""),
		FetchInvoiced:     getEnv("FETCH_INVOICED", "true") == "true",
		SubmitConcurrency: concurrency,
		InvoiceVATCode:    getEnv("INVOICE_VAT_CODE", "6"),
		InvoiceItemCode:   getEnv("INVOICE_ITEM_CODE", "TM"),
		InvoiceUnit:       getEnv("INVOICE_UNIT", "*****"),
		DatabaseURL:       getEnv("DATABASE_URL", "./progress.db"),
		DatabaseDriver:    getEnv("DATABASE_DRIVER", "sqlite3"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		APIKey:            getEnv("API_KEY", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogOutput:         getEnv("LOG_OUTPUT", "stderr"),
	}

	return cfg, nil
}

// ValidateERP reports whether the settings needed to talk to AFAS are present.
// Commands that only touch the local journal skip this check.
func (c *Config) ValidateERP() error {
	if c.AFASBaseURL == "" {
		return fmt.Errorf("AFAS_BASE_URL is required")
	}
	if c.AFASToken == "" {
		return fmt.Errorf("AFAS_TOKEN is required")
	}
	if c.AFASPageSize <= 0 {
		return fmt.Errorf("AFAS_PAGE_SIZE must be positive")
	}
	return nil
}

func (c *Config) LoggerConfig() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.Output = c.LogOutput
	return cfg
}

func (c *Config) Dump() {
	fmt.Printf("AFAS Base URL: %s\n", c.AFASBaseURL)
	fmt.Printf("AFAS Page Size: %d\n", c.AFASPageSize)
	fmt.Printf("Schema File: %s\n", c.SchemaFile)
	fmt.Printf("Database URL: %s\n", c.DatabaseURL)
	fmt.Printf("Database Driver: %s\n", c.DatabaseDriver)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
