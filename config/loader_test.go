/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServerConfig struct {
	Address string
	Timeout time.Duration
}

func (c *testServerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("server.addr", ":80")
	dp.SetDefault("server.timeout", "5s")
}

func (c *testServerConfig) Set(dp DataProvider) error {
	var err error
	if c.Address, err = dp.GetString("server.addr"); err != nil {
		return err
	}
	c.Timeout, err = dp.GetDuration("server.timeout")
	return err
}

type testLimitsConfig struct {
	MaxTokens int
	Mode      string
}

func (c *testLimitsConfig) KeyPrefix() string {
	return "limits"
}

func (c *testLimitsConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("mode", "strict")
}

func (c *testLimitsConfig) Set(dp DataProvider) error {
	var err error
	if c.MaxTokens, err = dp.GetInt("maxTokens"); err != nil {
		return err
	}
	c.Mode, err = dp.GetStringFromSet("mode", []string{"strict", "lenient"}, false)
	return err
}

type testAppConfig struct {
	Server *testServerConfig
	Limits *testLimitsConfig
	ignore *testLimitsConfig
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *testAppConfig) Set(dp DataProvider) error {
	return CallSetForFields(c, dp)
}

const testLimitsConfigYAML = `
limits:
  maxTokens: 10
`

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("load config, use defaults", func(t *testing.T) {
		srvCfg := &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, srvCfg)
		require.NoError(t, err)
		require.Equal(t, ":80", srvCfg.Address)
		require.Equal(t, 5*time.Second, srvCfg.Timeout)
	})

	t.Run("load config", func(t *testing.T) {
		srvCfg := &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"server":{"addr":":777","timeout":"1m"}}`), DataTypeJSON, srvCfg)
		require.NoError(t, err)
		require.Equal(t, ":777", srvCfg.Address)
		require.Equal(t, time.Minute, srvCfg.Timeout)
	})

	t.Run("load config, use key prefix", func(t *testing.T) {
		limitsCfg := &testLimitsConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(testLimitsConfigYAML), DataTypeYAML, limitsCfg)
		require.NoError(t, err)
		require.Equal(t, 10, limitsCfg.MaxTokens)
		require.Equal(t, "strict", limitsCfg.Mode)
	})

	t.Run("load config, value out of set", func(t *testing.T) {
		limitsCfg := &testLimitsConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"limits":{"maxTokens":1,"mode":"unknown"}}`), DataTypeJSON, limitsCfg)
		require.EqualError(t, err, `limits.mode: unknown value "unknown", should be one of [strict lenient]`)
	})

	t.Run("load nested configs", func(t *testing.T) {
		appCfg := &testAppConfig{Server: &testServerConfig{}, Limits: &testLimitsConfig{}}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(testLimitsConfigYAML), DataTypeYAML, appCfg)
		require.NoError(t, err)
		require.Equal(t, ":80", appCfg.Server.Address)
		require.Equal(t, 10, appCfg.Limits.MaxTokens)
		require.Nil(t, appCfg.ignore)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testLimitsConfigYAML), 0o600))

	limitsCfg := &testLimitsConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(cfgPath, DataTypeYAML, limitsCfg))
	require.Equal(t, 10, limitsCfg.MaxTokens)

	err := NewLoader(NewViperAdapter()).LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"), DataTypeYAML, limitsCfg)
	require.Error(t, err)
}

func TestNewDefaultLoader(t *testing.T) {
	t.Setenv("TESTAPP_LIMITS_MAXTOKENS", "42")

	limitsCfg := &testLimitsConfig{}
	err := NewDefaultLoader("testapp").LoadFromReader(bytes.NewBufferString(testLimitsConfigYAML), DataTypeYAML, limitsCfg)
	require.NoError(t, err)
	require.Equal(t, 42, limitsCfg.MaxTokens)
}
