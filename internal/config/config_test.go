package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	cfg := Config{
		MatchThreshold:          0.70,
		ReviewFractionThreshold: 0.5,
		TopKVendors:             5,
		SeedSamples:             10,
		SelectorWeights: SelectorWeights{
			Reliability: 0.40, Price: 0.30, Fulfillment: 0.20, Response: 0.10,
		},
		MetricsWeights: MetricsWeights{
			Acceptance: 0.20, Delivery: 0.25, Response: 0.25, Cancelled: 0.10, Price: 0.20,
		},
	}
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())
}

func TestValidate_RejectsBadSelectorWeights(t *testing.T) {
	cfg := defaultConfig()
	cfg.SelectorWeights.Reliability = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector weights")
}

func TestValidate_RejectsBadMetricsWeights(t *testing.T) {
	cfg := defaultConfig()
	cfg.MetricsWeights.Price = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics weights")
}

func TestValidate_RejectsOutOfRangeThresholds(t *testing.T) {
	cfg := defaultConfig()
	cfg.MatchThreshold = 1.5
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.TopKVendors = 0
	require.Error(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	cfg := defaultConfig()
	cfg.AppEnv = "prod"
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
	assert.False(t, cfg.IsTest())
}
