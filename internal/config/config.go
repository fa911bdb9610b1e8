// Package config loads the engine configuration from YAML with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the persistence backend. Driver "memory" runs
// without postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LotteryConfig is the per-kind boot configuration.
type LotteryConfig struct {
	Address     string            `yaml:"address"`
	TicketPrice int64             `yaml:"ticket_price"`
	Shares      lottery.PotShares `yaml:"shares"`
	Breakdown   []int             `yaml:"breakdown"`
}

// Duration decodes YAML strings like "15s" or "168h" into a duration.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// SchedulerConfig controls round automation.
type SchedulerConfig struct {
	StartSpec    string   `yaml:"start_spec"`
	RoundLength  Duration `yaml:"round_length"`
	PollInterval Duration `yaml:"poll_interval"`
}

// Config is the whole engine configuration.
type Config struct {
	HTTP      HTTPConfig           `yaml:"http"`
	Database  DatabaseConfig       `yaml:"database"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Operator  string               `yaml:"operator"`
	Team      string               `yaml:"team_wallet"`
	Burn      string               `yaml:"burn_address"`
	Standard  LotteryConfig        `yaml:"standard"`
	Special   LotteryConfig        `yaml:"special"`
	Bundles   []bundle.Rule        `yaml:"bundles"`
	Scheduler SchedulerConfig      `yaml:"scheduler"`
}

// Default returns the configuration used when no file is present: memory
// store, text logging, both lotteries on their shipped splits.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{Driver: "memory"},
		Logging:  logger.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Operator: "operator",
		Team:     "team-wallet",
		Burn:     "burn",
		Standard: LotteryConfig{
			Address:     "standard-pot",
			TicketPrice: 500,
			Shares:      lottery.PotShares{SelfPot: 5000, CounterpartPot: 3000, TeamWallet: 1000, Burn: 1000},
			Breakdown:   []int{0, 1000, 2500, 10000},
		},
		Special: LotteryConfig{
			Address:     "special-pot",
			TicketPrice: 1000,
			Shares:      lottery.PotShares{SelfPot: 0, CounterpartPot: 7000, TeamWallet: 2000, Burn: 1000},
		},
		Bundles: bundle.DefaultRules,
		Scheduler: SchedulerConfig{
			RoundLength:  Duration(7 * 24 * time.Hour),
			PollInterval: Duration(15 * time.Second),
		},
	}
}

// Load reads a YAML file over the defaults and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config/lottery.yaml when present, defaults otherwise.
func LoadOrDefault() (*Config, error) {
	path := os.Getenv("LOTTERY_CONFIG")
	if path == "" {
		path = filepath.Join("config", "lottery.yaml")
	}
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOTTERY_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOTTERY_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("LOTTERY_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("LOTTERY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOTTERY_OPERATOR"); v != "" {
		c.Operator = v
	}
}

// Validate rejects configurations the services would refuse at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr is required")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Operator == "" {
		return fmt.Errorf("operator address is required")
	}
	if err := c.Standard.Shares.Validate(); err != nil {
		return fmt.Errorf("standard shares: %w", err)
	}
	if err := lottery.Breakdown(c.Standard.Breakdown).Validate(); err != nil {
		return fmt.Errorf("standard breakdown: %w", err)
	}
	if err := c.Special.Shares.Validate(); err != nil {
		return fmt.Errorf("special shares: %w", err)
	}
	if c.Standard.Address == "" || c.Special.Address == "" {
		return fmt.Errorf("lottery pot addresses are required")
	}
	return nil
}
