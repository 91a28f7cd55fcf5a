package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // RUN_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"

	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Dart     DartConfig
	Market   MarketConfig
	Ledger   LedgerConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Database DatabaseConfig
	Schedule ScheduleConfig
	Log      LogConfig
}

// DartConfig holds OpenDART access settings
type DartConfig struct {
	APIKey  string
	BaseURL string
}

// MarketConfig holds settings for the market info and price pages
type MarketConfig struct {
	InfoURL       string
	PriceURL      string
	PriceMaxPages int
	CacheTTL      time.Duration
}

// LedgerConfig holds workbook settings
type LedgerConfig struct {
	Path       string
	Categories []model.Category
}

// PipelineConfig holds settings shared by every outbound call and the run itself
type PipelineConfig struct {
	HTTPTimeout       time.Duration
	HTTPRetries       int
	RequestsPerSecond float64
	FetchWorkers      int
	ExcludedSectors   []string
	LabelsPath        string // optional YAML label table replacing the built-in one
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port   string
	Host   string
	Addr   string // Combined host:port for convenience
	APIKey string // Required on mutating admin endpoints
}

// DatabaseConfig holds run journal database configuration
type DatabaseConfig struct {
	Path string
}

// ScheduleConfig holds the daemon's cron settings
type ScheduleConfig struct {
	Spec     string
	Location *time.Location
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	p := &parser{}

	config := &Config{
		Dart: DartConfig{
			APIKey:  getEnv("DART_API_KEY", ""),
			BaseURL: strings.TrimRight(getEnv("DART_BASE_URL", "https://opendart.fss.or.kr/api"), "/"),
		},
		Market: MarketConfig{
			InfoURL:       getEnv("MARKET_INFO_URL", "https://navercomp.wisereport.co.kr/v2/company/c1010001.aspx"),
			PriceURL:      getEnv("PRICE_URL", "https://finance.naver.com/item/sise_day.naver"),
			PriceMaxPages: p.intVal("PRICE_MAX_PAGES", 3),
			CacheTTL:      p.durationVal("MARKET_CACHE_TTL", 12*time.Hour),
		},
		Ledger: LedgerConfig{
			Path: getEnv("LEDGER_PATH", "국내 주요 공시 정리.xlsx"),
		},
		Pipeline: PipelineConfig{
			HTTPTimeout:       p.durationVal("HTTP_TIMEOUT", 10*time.Second),
			HTTPRetries:       p.intVal("HTTP_RETRIES", 2),
			RequestsPerSecond: p.floatVal("REQUESTS_PER_SECOND", 5),
			FetchWorkers:      p.intVal("FETCH_WORKERS", 4),
			ExcludedSectors:   splitList(getEnv("EXCLUDED_SECTORS", "건설")),
			LabelsPath:        getEnv("LABELS_PATH", ""),
		},
		Server: ServerConfig{
			Port:   getEnv("SERVER_PORT", "5001"),
			Host:   getEnv("SERVER_HOST", "localhost"),
			APIKey: getEnv("INTERNAL_API_KEY", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/ledger_runs.db"),
		},
		Schedule: ScheduleConfig{
			Spec: getEnv("RUN_SCHEDULE", "30 18 * * 1-5"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	categories, err := model.ParseCategories(getEnv("LEDGER_CATEGORIES", "contract,investment,merger"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_CATEGORIES: %w", err)
	}
	config.Ledger.Categories = categories

	loc, err := time.LoadLocation(getEnv("RUN_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_TIMEZONE: %w", err)
	}
	config.Schedule.Location = loc

	if sealed := getEnv("DART_API_KEY_SEALED", ""); sealed != "" {
		key, err := unsealAPIKey(sealed, getEnv("LEDGER_SECRET_KEY", ""))
		if err != nil {
			return nil, err
		}
		config.Dart.APIKey = key
	}

	if config.Pipeline.FetchWorkers < 1 {
		config.Pipeline.FetchWorkers = 1
	}
	if config.Market.PriceMaxPages < 1 {
		config.Market.PriceMaxPages = 1
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// unsealAPIKey decrypts a fernet token holding the OpenDART key. A negative
// ttl disables the token age check; rotation is done by re-sealing.
func unsealAPIKey(token, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("DART_API_KEY_SEALED is set but LEDGER_SECRET_KEY is empty")
	}
	key, err := fernet.DecodeKey(secret)
	if err != nil {
		return "", fmt.Errorf("invalid LEDGER_SECRET_KEY: %w", err)
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), -1, []*fernet.Key{key})
	if plain == nil {
		return "", fmt.Errorf("DART_API_KEY_SEALED could not be decrypted with LEDGER_SECRET_KEY")
	}
	return strings.TrimSpace(string(plain)), nil
}

// SealAPIKey encrypts an API key for storage in DART_API_KEY_SEALED.
func SealAPIKey(apiKey, secret string) (string, error) {
	key, err := fernet.DecodeKey(secret)
	if err != nil {
		return "", fmt.Errorf("invalid secret key: %w", err)
	}
	token, err := fernet.EncryptAndSign([]byte(apiKey), key)
	if err != nil {
		return "", fmt.Errorf("failed to seal api key: %w", err)
	}
	return string(token), nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) intVal(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) floatVal(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) durationVal(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
