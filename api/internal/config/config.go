package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StoreSheets = "sheets"
	StoreSQL    = "sql"
)

type Config struct {
	Port       string `validate:"required,numeric"`
	WebhookURL string `validate:"omitempty,url"`

	TelegramBotToken string `validate:"required"`

	Timezone    string        `validate:"required"`
	Debounce    time.Duration `validate:"gt=0"`
	InsertAtTop bool
	CommitLimit time.Duration `validate:"gt=0"`

	RecordStore string `validate:"oneof=sheets sql"`
	SheetID     string `validate:"required_if=RecordStore sheets"`
	DatabaseURL string `validate:"required_if=RecordStore sql"`

	DriveFolderID     string `validate:"required"`
	GoogleCredentials string `validate:"required"`
	CatalogFile       string `validate:"omitempty,file"`
	HelpContact       string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(k, ""))
	if err != nil {
		return def
	}
	return v
}

// Load reads the environment, after merging any .env file found in the
// working directory, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		WebhookURL: getEnv("WEBHOOK_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		Timezone:    getEnv("TIMEZONE", "Asia/Kuala_Lumpur"),
		Debounce:    getEnvDuration("DEBOUNCE", 1500*time.Millisecond),
		InsertAtTop: getEnvBool("INSERT_AT_TOP", true),
		CommitLimit: getEnvDuration("COMMIT_TIMEOUT", 2*time.Minute),

		RecordStore: strings.ToLower(getEnv("RECORD_STORE", StoreSheets)),
		SheetID:     getEnv("SHEET_ID", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		DriveFolderID:     getEnv("DRIVE_FOLDER_ID", ""),
		GoogleCredentials: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		CatalogFile:       getEnv("CATALOG_FILE", ""),
		HelpContact:       getEnv("HELP_CONTACT", "Cikgu Asyraf"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and that the time zone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the configured time zone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CredentialsJSON returns the service account key. The env var may hold
// the JSON itself or a path to it.
func (c *Config) CredentialsJSON() ([]byte, error) {
	v := strings.TrimSpace(c.GoogleCredentials)
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	return b, nil
}

// DatabaseURL reads only DATABASE_URL, for commands that need nothing else.
func DatabaseURL() string {
	_ = godotenv.Load()
	return getEnv("DATABASE_URL", "")
}
