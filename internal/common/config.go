package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const DefaultReportName = "发票识别结果.xlsx"

// Config holds all application configuration
type Config struct {
	OCR    OCRConfig    `toml:"ocr"`
	Render RenderConfig `toml:"render"`
	Report ReportConfig `toml:"report"`
	Ledger LedgerConfig `toml:"ledger"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// OCRConfig holds the recognition vendor settings
type OCRConfig struct {
	AppID     string   `toml:"app_id"`
	APIKey    string   `toml:"api_key"`
	SecretKey string   `toml:"secret_key"`
	BaseURL   string   `toml:"base_url"`
	QPS       float64  `toml:"qps"`
	Timeout   Duration `toml:"timeout"`
}

// RenderConfig holds PDF rasterization settings
type RenderConfig struct {
	Pdftoppm    string `toml:"pdftoppm"`
	DPI         int    `toml:"dpi"`
	Gray        bool   `toml:"gray"`
	MaxEdge     int    `toml:"max_edge"`
	JPEGQuality int    `toml:"jpeg_quality"`
	TempDir     string `toml:"temp_dir"`
}

type ReportConfig struct {
	Name string `toml:"name"`
}

// LedgerConfig selects the processing ledger database. A postgres:// DSN uses
// pgx, anything else is a SQLite path. "off" disables the ledger.
type LedgerConfig struct {
	DSN string `toml:"dsn"`
}

type ServerConfig struct {
	HealthAddr string `toml:"health_addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration reads "30s"-style strings from TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LoadOptions points LoadConfig at optional files. Missing files are ignored
// unless named explicitly.
type LoadOptions struct {
	ConfigFile string // TOML
	EnvFile    string // defaults to .env
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			BaseURL: "https://aip.baidubce.com",
			QPS:     2,
			Timeout: Duration(30 * time.Second),
		},
		Render: RenderConfig{
			Pdftoppm:    "pdftoppm",
			DPI:         300,
			MaxEdge:     4096,
			JPEGQuality: 95,
		},
		Report: ReportConfig{Name: DefaultReportName},
		Ledger: LedgerConfig{DSN: "invoice_ocr.db"},
		Server: ServerConfig{HealthAddr: ":8090"},
		Log:    LogConfig{Level: "info", File: "invoice_ocr.log"},
	}
}

// LoadConfig layers defaults, the TOML file, the .env file and environment
// variables, in that order. CLI flags are applied by the caller afterwards.
func LoadConfig(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.ConfigFile != "" {
		raw, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file "+opts.ConfigFile, err)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already set in the process.
	if err := godotenv.Load(envFile); err != nil && (opts.EnvFile != "" || !errors.Is(err, os.ErrNotExist)) {
		return nil, NewAppError("CONFIG_ERROR", "load env file "+envFile, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.OCR.AppID = getEnv("BAIDU_APP_ID", c.OCR.AppID)
	c.OCR.APIKey = getEnv("BAIDU_API_KEY", c.OCR.APIKey)
	c.OCR.SecretKey = getEnv("BAIDU_SECRET_KEY", c.OCR.SecretKey)
	c.OCR.BaseURL = getEnv("BAIDU_BASE_URL", c.OCR.BaseURL)
	c.OCR.QPS = getEnvAsFloat64("OCR_QPS", c.OCR.QPS)
	c.OCR.Timeout = Duration(getEnvAsDuration("OCR_TIMEOUT", time.Duration(c.OCR.Timeout)))

	c.Render.DPI = getEnvAsInt("RENDER_DPI", c.Render.DPI)
	c.Render.Pdftoppm = getEnv("PDFTOPPM", c.Render.Pdftoppm)

	c.Report.Name = getEnv("REPORT_NAME", c.Report.Name)
	c.Ledger.DSN = getEnv("LEDGER_DSN", c.Ledger.DSN)
	c.Server.HealthAddr = getEnv("HEALTH_ADDR", c.Server.HealthAddr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

// ApplyCredentials sets the key triple from an "APP_ID,API_KEY,SECRET_KEY" string.
func (c *Config) ApplyCredentials(s string) error {
	appID, apiKey, secret, err := ParseCredentials(s)
	if err != nil {
		return err
	}
	c.OCR.AppID, c.OCR.APIKey, c.OCR.SecretKey = appID, apiKey, secret
	return nil
}

// ParseCredentials splits "APP_ID,API_KEY,SECRET_KEY" into its three parts.
func ParseCredentials(s string) (appID, apiKey, secretKey string, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return "", "", "", NewAppError("CONFIG_ERROR",
			fmt.Sprintf("credentials must be APP_ID,API_KEY,SECRET_KEY (got %d parts)", len(parts)), ErrInvalidInput)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return "", "", "", NewAppError("CONFIG_ERROR", "credentials contain an empty part", ErrInvalidInput)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// LedgerEnabled reports whether a ledger database is configured.
func (c *Config) LedgerEnabled() bool {
	dsn := strings.TrimSpace(c.Ledger.DSN)
	return dsn != "" && !strings.EqualFold(dsn, "off")
}

// SlogLevel maps Log.Level onto slog; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	return NewValidator().
		Field("BAIDU_API_KEY", c.OCR.APIKey, Required).
		Field("BAIDU_SECRET_KEY", c.OCR.SecretKey, Required).
		Field("OCR_QPS", c.OCR.QPS, Positive).
		Field("RENDER_DPI", c.Render.DPI, Positive).
		Field("render.jpeg_quality", c.Render.JPEGQuality, Between(1, 100)).
		Field("REPORT_NAME", c.Report.Name, Required).
		Err("CONFIG_ERROR")
}
