package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the marketd policy file: HTTP surface, storage location and the
// marketplace parameters seeded into state at startup. All percentages in
// [fees] follow the engine conventions: Buy/Sell and discounts are
// per-mille, the split and cap values are percent.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// RequestsPerMinute caps HTTP traffic per client; 0 disables the
	// limiter.
	RequestsPerMinute int64 `toml:"RequestsPerMinute"`

	Fees     FeePolicy      `toml:"fees"`
	Schedule SchedulePolicy `toml:"schedule"`
	Club     ClubPolicy     `toml:"club"`
	Referral ReferralPolicy `toml:"referral"`

	// ServiceFees maps operation tags (list, buy, withdraw, renew,
	// featured) to flat CRU charges.
	ServiceFees map[string]int64 `toml:"ServiceFees"`
	// Discounts maps membership tiers (as decimal strings) to per-mille
	// fee discounts.
	Discounts map[string]int64 `toml:"Discounts"`
	// Roles maps role names to 40-hex-character service addresses.
	Roles map[string]string `toml:"Roles"`
}

type FeePolicy struct {
	BuyPermille  int64 `toml:"BuyPermille"`
	SellPermille int64 `toml:"SellPermille"`
	TreasuryPct  int64 `toml:"TreasuryPct"`
	BrandPct     int64 `toml:"BrandPct"`
	StakingPct   int64 `toml:"StakingPct"`
	MaxFeeCapPct int64 `toml:"MaxFeeCapPct"`
	FiatFeePct   int64 `toml:"FiatFeePct"`
	CRUPerUSD    int64 `toml:"CRUPerUSD"`
}

type SchedulePolicy struct {
	ScheduleDay int64 `toml:"ScheduleDay"`
	// Delays and Durations are keyed by collection key, in seconds.
	Delays    map[string]int64 `toml:"Delays"`
	Durations map[string]int64 `toml:"Durations"`
	// Priorities maps membership tiers (as decimal strings) to the extra
	// seconds the tier waits before buying.
	Priorities map[string]int64 `toml:"Priorities"`
}

type ClubPolicy struct {
	UnstakeDelaySeconds int64 `toml:"UnstakeDelaySeconds"`
}

type ReferralPolicy struct {
	RewardPermille int64 `toml:"RewardPermille"`
}

// Load reads the policy file, creating a default one when absent.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Club.UnstakeDelaySeconds == 0 {
		cfg.Club.UnstakeDelaySeconds = 7 * 24 * 60 * 60
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 600
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:     ":8080",
		DataDir:           "./market-data",
		Environment:       "local",
		RequestsPerMinute: 600,
		Fees: FeePolicy{
			BuyPermille:  25,
			SellPermille: 25,
			TreasuryPct:  50,
			BrandPct:     30,
			StakingPct:   20,
			MaxFeeCapPct: 10,
			FiatFeePct:   3,
			CRUPerUSD:    100,
		},
		Schedule: SchedulePolicy{
			ScheduleDay: 0,
			Delays:      map[string]int64{},
			Durations:   map[string]int64{},
			Priorities:  map[string]int64{},
		},
		Club:     ClubPolicy{UnstakeDelaySeconds: 7 * 24 * 60 * 60},
		Referral: ReferralPolicy{RewardPermille: 10},
		ServiceFees: map[string]int64{
			"list": 5,
			"buy":  10,
		},
		Discounts: map[string]int64{},
		Roles:     map[string]string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Validate enforces the same range and sum invariants the engines enforce
// at runtime, so a bad file fails at startup instead of at first trade.
func (c *Config) Validate() error {
	f := c.Fees
	if f.TreasuryPct+f.BrandPct+f.StakingPct != 100 {
		return fmt.Errorf("config: fee split percentages must sum to 100, got %d", f.TreasuryPct+f.BrandPct+f.StakingPct)
	}
	if f.MaxFeeCapPct < 0 || f.MaxFeeCapPct > 100 {
		return fmt.Errorf("config: MaxFeeCapPct out of range: %d", f.MaxFeeCapPct)
	}
	if f.BuyPermille < 0 || f.SellPermille < 0 || f.FiatFeePct < 0 {
		return fmt.Errorf("config: negative fee percentage")
	}
	if f.BuyPermille+f.SellPermille > f.MaxFeeCapPct*10 {
		return fmt.Errorf("config: combined buy/sell fee exceeds cap")
	}
	if f.CRUPerUSD <= 0 {
		return fmt.Errorf("config: CRUPerUSD must be positive")
	}
	if c.Schedule.ScheduleDay < 0 || c.Schedule.ScheduleDay > 6 {
		return fmt.Errorf("config: ScheduleDay must be 0..6, got %d", c.Schedule.ScheduleDay)
	}
	for key, seconds := range c.Schedule.Durations {
		if seconds <= 0 {
			return fmt.Errorf("config: duration for collection %q must be positive", key)
		}
	}
	for key, seconds := range c.Schedule.Delays {
		if seconds < 0 {
			return fmt.Errorf("config: delay for collection %q must not be negative", key)
		}
	}
	if _, err := c.TierPriorities(); err != nil {
		return err
	}
	if _, err := c.TierDiscounts(); err != nil {
		return err
	}
	if c.Referral.RewardPermille < 0 || c.Referral.RewardPermille > 1000 {
		return fmt.Errorf("config: RewardPermille must be 0..1000, got %d", c.Referral.RewardPermille)
	}
	if c.Club.UnstakeDelaySeconds < 0 {
		return fmt.Errorf("config: UnstakeDelaySeconds must not be negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config: RequestsPerMinute must not be negative")
	}
	for op, fee := range c.ServiceFees {
		if fee < 0 {
			return fmt.Errorf("config: service fee for %q must not be negative", op)
		}
	}
	if _, err := c.RoleAddresses(); err != nil {
		return err
	}
	return nil
}

// TierPriorities converts the string-keyed priority map to tier keys.
func (c *Config) TierPriorities() (map[uint8]int64, error) {
	return tierMap(c.Schedule.Priorities, "priority")
}

// TierDiscounts converts the string-keyed discount map to tier keys.
func (c *Config) TierDiscounts() (map[uint8]int64, error) {
	out, err := tierMap(c.Discounts, "discount")
	if err != nil {
		return nil, err
	}
	for tier, permille := range out {
		if permille < 0 || permille > 1000 {
			return nil, fmt.Errorf("config: discount for tier %d must be 0..1000, got %d", tier, permille)
		}
	}
	return out, nil
}

func tierMap(src map[string]int64, what string) (map[uint8]int64, error) {
	out := make(map[uint8]int64, len(src))
	for key, value := range src {
		tier, err := strconv.ParseUint(key, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("config: %s key %q is not a membership tier", what, key)
		}
		out[uint8(tier)] = value
	}
	return out, nil
}

// RoleAddresses decodes the configured role bindings into 20-byte
// addresses, accepting an optional 0x prefix.
func (c *Config) RoleAddresses() (map[string][20]byte, error) {
	out := make(map[string][20]byte, len(c.Roles))
	for role, encoded := range c.Roles {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(encoded), "0x"))
		if err != nil || len(raw) != 20 {
			return nil, fmt.Errorf("config: role %q address must be 20 hex bytes", role)
		}
		var addr [20]byte
		copy(addr[:], raw)
		out[role] = addr
	}
	return out, nil
}
