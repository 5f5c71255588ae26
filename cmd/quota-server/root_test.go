/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quota/quota"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig("")
		require.NoError(t, err)
		require.Equal(t, quota.DefaultStrategy, cfg.Quota.Strategy)
		require.Equal(t, ":8080", cfg.Server.Address)
	})

	t.Run("json file", func(t *testing.T) {
		cfgFile := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(cfgFile, []byte(`{
			"quota": {"strategy": "continuous_refill", "continuousRefill": {"ratePerMinute": 120, "burstLimit": 5, "startFull": true}},
			"server": {"address": ":9090"}
		}`), 0o600))
		cfg, err := loadConfig(cfgFile)
		require.NoError(t, err)
		require.Equal(t, quota.StrategyContinuousRefill, cfg.Quota.Strategy)
		require.Equal(t, 120.0, cfg.Quota.ContinuousRefill.RatePerMinute)
		require.Equal(t, 5, cfg.Quota.ContinuousRefill.BurstLimit)
		require.True(t, cfg.Quota.ContinuousRefill.StartFull)
		require.Equal(t, ":9090", cfg.Server.Address)
		require.Equal(t, 5*time.Second, time.Duration(cfg.Server.Timeouts.Shutdown))
	})

	t.Run("invalid yaml file", func(t *testing.T) {
		cfgFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgFile, []byte("quota:\n  strategy: sliding_log\n"), 0o600))
		_, err := loadConfig(cfgFile)
		require.ErrorContains(t, err, "quota.strategy")
	})
}

func TestValidateCommand(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("quota:\n  strategy: fixed_window_bonus\n  fixedWindow:\n    maxTokens: 3\n    window: 6s\n    burstBonus: 1\n"), 0o600))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--config", cfgFile})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "configuration is valid (strategy: fixed_window_bonus)\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "v0.0.0\n", out.String())
}
