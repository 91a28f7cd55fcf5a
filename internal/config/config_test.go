package config

import (
	"testing"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DART_API_KEY", "plain-key")
		t.Setenv("LEDGER_CATEGORIES", "")
		t.Setenv("HTTP_TIMEOUT", "")
		t.Setenv("FETCH_WORKERS", "")
		t.Setenv("EXCLUDED_SECTORS", "")
		t.Setenv("DART_API_KEY_SEALED", "")
		t.Setenv("SERVER_HOST", "")
		t.Setenv("SERVER_PORT", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned unexpected error: %v", err)
		}

		if cfg.Dart.APIKey != "plain-key" {
			t.Errorf("Expected api key 'plain-key', got %q", cfg.Dart.APIKey)
		}
		if len(cfg.Ledger.Categories) != 3 || cfg.Ledger.Categories[0] != model.CategoryContract {
			t.Errorf("Expected all three categories, got %v", cfg.Ledger.Categories)
		}
		if cfg.Pipeline.HTTPTimeout != 10*time.Second {
			t.Errorf("Expected 10s timeout, got %s", cfg.Pipeline.HTTPTimeout)
		}
		if cfg.Pipeline.FetchWorkers != 4 {
			t.Errorf("Expected 4 workers, got %d", cfg.Pipeline.FetchWorkers)
		}
		if len(cfg.Pipeline.ExcludedSectors) != 1 || cfg.Pipeline.ExcludedSectors[0] != "건설" {
			t.Errorf("Expected construction sector excluded by default, got %v", cfg.Pipeline.ExcludedSectors)
		}
		if cfg.Server.Addr != "localhost:5001" {
			t.Errorf("Expected addr localhost:5001, got %s", cfg.Server.Addr)
		}
		if cfg.Schedule.Location == nil || cfg.Schedule.Location.String() != "Asia/Seoul" {
			t.Errorf("Expected Asia/Seoul schedule location, got %v", cfg.Schedule.Location)
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		t.Setenv("LEDGER_CATEGORIES", "merger, contract")
		t.Setenv("HTTP_TIMEOUT", "3s")
		t.Setenv("FETCH_WORKERS", "0")
		t.Setenv("EXCLUDED_SECTORS", "건설, 금융 ,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned unexpected error: %v", err)
		}

		if len(cfg.Ledger.Categories) != 2 || cfg.Ledger.Categories[0] != model.CategoryMerger {
			t.Errorf("Expected [merger contract], got %v", cfg.Ledger.Categories)
		}
		if cfg.Pipeline.HTTPTimeout != 3*time.Second {
			t.Errorf("Expected 3s timeout, got %s", cfg.Pipeline.HTTPTimeout)
		}
		if cfg.Pipeline.FetchWorkers != 1 {
			t.Errorf("Expected worker count clamped to 1, got %d", cfg.Pipeline.FetchWorkers)
		}
		if len(cfg.Pipeline.ExcludedSectors) != 2 || cfg.Pipeline.ExcludedSectors[1] != "금융" {
			t.Errorf("Expected trimmed sector list, got %v", cfg.Pipeline.ExcludedSectors)
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value string
		}{
			{name: "duration", key: "HTTP_TIMEOUT", value: "soon"},
			{name: "integer", key: "PRICE_MAX_PAGES", value: "three"},
			{name: "category", key: "LEDGER_CATEGORIES", value: "contract,dividend"},
			{name: "timezone", key: "RUN_TIMEZONE", value: "Mars/Olympus"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Setenv(tt.key, tt.value)
				if _, err := Load(); err == nil {
					t.Errorf("Expected error for %s=%q", tt.key, tt.value)
				}
			})
		}
	})
}

// TestLoad_SealedAPIKey tests fernet sealed keys.
//
// WHY: The API key is the only credential the ledger holds. Operators may keep it
// sealed in .env; a sealed key must win over a plain one and a wrong secret must
// fail loudly instead of silently running unauthenticated.
func TestLoad_SealedAPIKey(t *testing.T) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	secret := key.Encode()

	sealed, err := SealAPIKey("sealed-key", secret)
	if err != nil {
		t.Fatalf("SealAPIKey() returned unexpected error: %v", err)
	}

	t.Run("decrypts sealed key", func(t *testing.T) {
		t.Setenv("DART_API_KEY", "plain-key")
		t.Setenv("DART_API_KEY_SEALED", sealed)
		t.Setenv("LEDGER_SECRET_KEY", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned unexpected error: %v", err)
		}
		if cfg.Dart.APIKey != "sealed-key" {
			t.Errorf("Expected sealed key to take precedence, got %q", cfg.Dart.APIKey)
		}
	})

	t.Run("fails without secret", func(t *testing.T) {
		t.Setenv("DART_API_KEY_SEALED", sealed)
		t.Setenv("LEDGER_SECRET_KEY", "")

		if _, err := Load(); err == nil {
			t.Error("Expected error when secret is missing")
		}
	})

	t.Run("fails with wrong secret", func(t *testing.T) {
		var other fernet.Key
		if err := other.Generate(); err != nil {
			t.Fatalf("Failed to generate key: %v", err)
		}
		t.Setenv("DART_API_KEY_SEALED", sealed)
		t.Setenv("LEDGER_SECRET_KEY", other.Encode())

		if _, err := Load(); err == nil {
			t.Error("Expected error when secret does not match")
		}
	})
}
