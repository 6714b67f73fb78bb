package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawScanDir string
	OutputDir  string

	LogLevel  string
	LogFormat string

	SupabaseURL          string
	SupabaseAnonKey      string
	SupabaseRateLimitRPS int
	SupabaseTimeoutMs    int
	SupabaseScansTable   string
	SupabaseStrainsTable string

	ScanSource   string
	ScanInboxDir string

	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool

	HTTPAddr string

	BlocklistPath         string
	CatalogFuzzyThreshold float64
	CatalogReloadSec      int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawScanDir: getEnv("SCAN_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SupabaseURL:          getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:      getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseRateLimitRPS: getEnvInt("SUPABASE_RATE_LIMIT_RPS", 5),
		SupabaseTimeoutMs:    getEnvInt("SUPABASE_TIMEOUT_MS", 30000),
		SupabaseScansTable:   getEnv("SUPABASE_SCANS_TABLE", "scans"),
		SupabaseStrainsTable: getEnv("SUPABASE_STRAINS_TABLE", "strains"),

		ScanSource:   getEnv("SCAN_SOURCE", "supabase"),
		ScanInboxDir: getEnv("SCAN_INBOX_DIR", filepath.Join(cwd, "data", "inbox")),

		ListenerIntervalSec:  getEnvInt("LISTENER_INTERVAL_SEC", 30),
		ListenerFetchMax:     getEnvInt("LISTENER_FETCH_MAX", 50),
		ListenerProcessBatch: getEnvInt("LISTENER_PROCESS_BATCH", 50),
		ListenerAutoExport:   getEnvBool("LISTENER_AUTO_EXPORT", true),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		BlocklistPath:         getEnv("BLOCKLIST_PATH", ""),
		CatalogFuzzyThreshold: getEnvFloat("CATALOG_FUZZY_THRESHOLD", 0.82),
		CatalogReloadSec:      getEnvInt("CATALOG_RELOAD_SEC", 300),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
