package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierConfigHolderDefaultsWithoutFile(t *testing.T) {
	holder, err := NewTierConfigHolder(Config{TiersConfigPath: t.TempDir()})
	require.NoError(t, err)

	limit, ok := holder.Get().MonthlyQuotationLimit("FREE")
	require.True(t, ok)
	require.Equal(t, 10, limit)

	_, ok = holder.Get().MonthlyQuotationLimit("platinum")
	require.False(t, ok)
}

func TestTierConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("tiers:\n  default: starter\n  limits:\n    starter: 3\n    scale: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiers.yaml"), content, 0o600))

	holder, err := NewTierConfigHolder(Config{TiersConfigPath: dir})
	require.NoError(t, err)

	cfg := holder.Get()
	require.Equal(t, "starter", cfg.Default)
	limit, ok := cfg.MonthlyQuotationLimit("starter")
	require.True(t, ok)
	require.Equal(t, 3, limit)
}

func TestValidateTierConfigRejectsNegativeLimit(t *testing.T) {
	err := validateTierConfig(TierConfig{Default: "free", Limits: map[string]int{"free": -1}})
	require.Error(t, err)
}
