package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// TierConfig maps subscription tiers to their monthly quotation limits.
// A limit of 0 means unlimited.
type TierConfig struct {
	Default string         `mapstructure:"default"`
	Limits  map[string]int `mapstructure:"limits"`
}

func DefaultTierConfig() TierConfig {
	return TierConfig{
		Default: TierFree,
		Limits: map[string]int{
			TierFree:       10,
			TierBasic:      50,
			TierPro:        250,
			TierEnterprise: 0,
		},
	}
}

// MonthlyQuotationLimit returns the limit for tier and whether the tier exists.
func (c TierConfig) MonthlyQuotationLimit(tier string) (int, bool) {
	limit, ok := c.Limits[strings.ToLower(strings.TrimSpace(tier))]
	return limit, ok
}

type TierConfigHolder struct {
	current atomic.Value // holds TierConfig
}

// NewStaticTierConfigHolder returns a holder that never reloads.
func NewStaticTierConfigHolder(cfg TierConfig) *TierConfigHolder {
	holder := &TierConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewTierConfigHolder(cfg Config) (*TierConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("tiers")
	v.SetConfigType("yaml")
	if cfg.TiersConfigPath != "" {
		v.AddConfigPath(cfg.TiersConfigPath)
	}
	v.AddConfigPath("/etc/freightdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FREIGHTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultTierConfig()
	v.SetDefault("tiers.default", defaults.Default)
	v.SetDefault("tiers.limits", defaults.Limits)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	tiers, err := readTierConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticTierConfigHolder(tiers)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readTierConfig(v)
		if err != nil {
			zap.L().Warn("tier config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Replace(updated)
		zap.L().Info("tier config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *TierConfigHolder) Get() TierConfig {
	return h.current.Load().(TierConfig)
}

// Replace swaps in cfg, as a file reload does.
func (h *TierConfigHolder) Replace(cfg TierConfig) {
	h.current.Store(cfg)
}

func readTierConfig(v *viper.Viper) (TierConfig, error) {
	var cfg TierConfig
	if err := v.UnmarshalKey("tiers", &cfg); err != nil {
		return TierConfig{}, err
	}
	normalized := make(map[string]int, len(cfg.Limits))
	for tier, limit := range cfg.Limits {
		normalized[strings.ToLower(strings.TrimSpace(tier))] = limit
	}
	cfg.Limits = normalized
	cfg.Default = strings.ToLower(strings.TrimSpace(cfg.Default))
	if err := validateTierConfig(cfg); err != nil {
		return TierConfig{}, err
	}
	return cfg, nil
}

func validateTierConfig(cfg TierConfig) error {
	if len(cfg.Limits) == 0 {
		return errors.New("tiers.limits cannot be empty")
	}
	if _, ok := cfg.Limits[cfg.Default]; !ok {
		return fmt.Errorf("tiers.default %q has no limit", cfg.Default)
	}
	for tier, limit := range cfg.Limits {
		if limit < 0 {
			return fmt.Errorf("tiers.limits.%s must not be negative", tier)
		}
	}
	return nil
}
