package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ilpswitch/accounts"
	"ilpswitch/ilp"
)

// Config is the node's on-disk configuration.
type Config struct {
	OperatorAddress  string         `toml:"OperatorAddress"`
	OpsListenAddress string         `toml:"OpsListenAddress"`
	DataDir          string         `toml:"DataDir"`
	StaticRoutesFile string         `toml:"StaticRoutesFile"`
	CatchAllPrefix   string         `toml:"CatchAllPrefix"`
	LogFile          string         `toml:"LogFile"`
	Accounts         []AccountEntry `toml:"Accounts"`
}

// AccountEntry mirrors accounts.Settings in TOML-friendly form. Optional
// limits stay pointers so absence is distinguishable from zero.
type AccountEntry struct {
	ID                 string   `toml:"ID"`
	MaxPacketAmount    uint64   `toml:"MaxPacketAmount"`
	MinClearingBalance *int64   `toml:"MinClearingBalance"`
	SettleThreshold    *int64   `toml:"SettleThreshold"`
	SettleTo           int64    `toml:"SettleTo"`
	RateLimitPerSecond *float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	ChildAddress       string   `toml:"ChildAddress"`
	Internal           bool     `toml:"Internal"`
}

// Load reads the configuration at path, creating a commented default on first
// run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := ilp.ParseAddress(strings.TrimSpace(c.OperatorAddress)); err != nil {
		return fmt.Errorf("config: OperatorAddress: %w", err)
	}
	if c.CatchAllPrefix != "" {
		if _, err := ilp.ParseAddress(c.CatchAllPrefix); err != nil {
			return fmt.Errorf("config: CatchAllPrefix: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, entry := range c.Accounts {
		if strings.TrimSpace(entry.ID) == "" {
			return fmt.Errorf("config: account %d: missing ID", i)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("config: duplicate account %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if entry.ChildAddress != "" {
			if _, err := ilp.ParseAddress(entry.ChildAddress); err != nil {
				return fmt.Errorf("config: account %q: ChildAddress: %w", entry.ID, err)
			}
		}
	}
	return nil
}

// AccountSettings converts the configured accounts for the settings provider.
func (c *Config) AccountSettings() []accounts.Settings {
	out := make([]accounts.Settings, 0, len(c.Accounts))
	for _, entry := range c.Accounts {
		out = append(out, accounts.Settings{
			AccountID:          entry.ID,
			MaxPacketAmount:    entry.MaxPacketAmount,
			MinClearingBalance: entry.MinClearingBalance,
			SettleThreshold:    entry.SettleThreshold,
			SettleTo:           entry.SettleTo,
			RateLimitPerSecond: entry.RateLimitPerSecond,
			RateLimitBurst:     entry.RateLimitBurst,
			ChildAddress:       ilp.Address(entry.ChildAddress),
			Internal:           entry.Internal,
		})
	}
	return out
}

// createDefault writes a runnable local default and returns it.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		OperatorAddress:  "test.ilpswitch-local",
		OpsListenAddress: ":8080",
		DataDir:          "./ilpswitch-data",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
