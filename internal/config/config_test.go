package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lottery.yaml")
	body := `
http:
  addr: ":9999"
database:
  driver: postgres
  dsn: postgres://localhost/lottery
operator: ops-team
standard:
  ticket_price: 750
scheduler:
  start_spec: "0 12 * * 1"
  round_length: 168h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Standard.TicketPrice != 750 {
		t.Fatalf("ticket price = %d", cfg.Standard.TicketPrice)
	}
	// Untouched sections keep their defaults.
	if cfg.Special.Shares.CounterpartPot != 7000 {
		t.Fatalf("special shares = %+v", cfg.Special.Shares)
	}
	if cfg.Scheduler.RoundLength.Std() != 168*time.Hour {
		t.Fatalf("round length = %s", cfg.Scheduler.RoundLength)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"postgres without dsn", "database:\n  driver: postgres\n"},
		{"unknown driver", "database:\n  driver: sqlite\n"},
		{"bad shares", "standard:\n  shares:\n    self_pot: 100\n"},
		{"bad breakdown", "standard:\n  breakdown: [10000, 0, 0, 0]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lottery.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load accepted invalid config")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOTTERY_HTTP_ADDR", ":7070")
	t.Setenv("LOTTERY_DB_DRIVER", "memory")
	t.Setenv("LOTTERY_OPERATOR", "env-operator")

	cfg, err := LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Operator != "env-operator" {
		t.Fatalf("operator = %q", cfg.Operator)
	}
}
