package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/protocol"
)

// MaxWithdrawDelaySeconds is the longest delay a time.Duration can carry.
const MaxWithdrawDelaySeconds = uint64(math.MaxInt64 / int64(time.Second))

// TokenConfig names a token.
type TokenConfig struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Allocation funds an account at genesis. Amounts are decimal strings.
type Allocation struct {
	Address string `json:"address"`
	Asset   string `json:"asset,omitempty"`
	Native  string `json:"native,omitempty"`
}

// Config holds all configurable parameters for the application
type Config struct {
	Port                 int          `json:"port"`
	StorageDir           string       `json:"storage_dir"`
	LogLevel             string       `json:"log_level"`
	Owner                string       `json:"owner"`
	WithdrawDelaySeconds uint64       `json:"withdraw_delay_seconds"`
	Asset                TokenConfig  `json:"asset"`
	Share                TokenConfig  `json:"share"`
	Managers             []string     `json:"managers"`
	Genesis              []Allocation `json:"genesis"`
	VaultNative          string       `json:"vault_native,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Port:                 8080,
		LogLevel:             "info",
		Owner:                "0x00000000000000000000000000000000000000f0",
		WithdrawDelaySeconds: protocol.DefaultWithdrawDelay,
		Asset:                TokenConfig{Name: "Mock USD Coin", Symbol: "mUSDC", Decimals: 6},
		Share:                TokenConfig{Name: "Vault Share", Symbol: "vSHARE", Decimals: 6},
	}
}

// Load reads and parses the config.json file. Fields missing from the file
// keep their defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads the default config from config.json in the config directory
func LoadDefault() (*Config, error) {
	return Load("config/config.json")
}

// Validate checks addresses and amounts.
func (c *Config) Validate() error {
	if _, err := ParseAddress(c.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if c.WithdrawDelaySeconds == 0 {
		return fmt.Errorf("withdraw_delay_seconds must be positive")
	}
	if c.WithdrawDelaySeconds > MaxWithdrawDelaySeconds {
		return fmt.Errorf("withdraw_delay_seconds must be at most %d", MaxWithdrawDelaySeconds)
	}
	for i, m := range c.Managers {
		if _, err := ParseAddress(m); err != nil {
			return fmt.Errorf("managers[%d]: %w", i, err)
		}
	}
	for i, a := range c.Genesis {
		if _, err := ParseAddress(a.Address); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, err := ParseAmount(a.Asset); err != nil {
			return fmt.Errorf("genesis[%d].asset: %w", i, err)
		}
		if _, err := ParseAmount(a.Native); err != nil {
			return fmt.Errorf("genesis[%d].native: %w", i, err)
		}
	}
	if _, err := ParseAmount(c.VaultNative); err != nil {
		return fmt.Errorf("vault_native: %w", err)
	}
	return nil
}

// WithdrawDelay returns the queue delay.
func (c *Config) WithdrawDelay() time.Duration {
	return time.Duration(c.WithdrawDelaySeconds) * time.Second
}

// OwnerAddress returns the deployer and owner of every contract.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// ParseAddress parses a non-zero hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

// ParseAmount parses a decimal amount. The empty string is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
