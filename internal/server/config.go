/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package server

import (
	"fmt"
	"time"

	"github.com/acronis/go-quota/config"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyAddress           = "address"
	cfgKeyErrorDomain       = "errorDomain"
	cfgKeyTimeoutsRead      = "timeouts.read"
	cfgKeyTimeoutsWrite     = "timeouts.write"
	cfgKeyTimeoutsIdle      = "timeouts.idle"
	cfgKeyTimeoutsShutdown  = "timeouts.shutdown"
	cfgKeyMiddleware        = "middleware"
	cfgKeyMiddlewareBacklog = "middleware.backlogLimit"
)

const (
	defaultAddress          = ":8080"
	defaultErrorDomain      = "Quota"
	defaultTimeoutsRead     = 15 * time.Second
	defaultTimeoutsWrite    = time.Minute
	defaultTimeoutsIdle     = time.Minute
	defaultTimeoutsShutdown = 5 * time.Second
)

// Config represents a set of configuration parameters for the quota HTTP server.
type Config struct {
	Address     string           `mapstructure:"address" yaml:"address" json:"address"`
	ErrorDomain string           `mapstructure:"errorDomain" yaml:"errorDomain" json:"errorDomain"`
	Timeouts    TimeoutsConfig   `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Middleware  MiddlewareConfig `mapstructure:"middleware" yaml:"middleware" json:"middleware"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// TimeoutsConfig represents timeouts of the HTTP server.
type TimeoutsConfig struct {
	Read     config.TimeDuration `mapstructure:"read" yaml:"read" json:"read"`
	Write    config.TimeDuration `mapstructure:"write" yaml:"write" json:"write"`
	Idle     config.TimeDuration `mapstructure:"idle" yaml:"idle" json:"idle"`
	Shutdown config.TimeDuration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// MiddlewareConfig represents parameters of the quota middleware that guards API routes.
type MiddlewareConfig struct {
	DryRun         bool                `mapstructure:"dryRun" yaml:"dryRun" json:"dryRun"`
	BacklogLimit   int                 `mapstructure:"backlogLimit" yaml:"backlogLimit" json:"backlogLimit"`
	BacklogTimeout config.TimeDuration `mapstructure:"backlogTimeout" yaml:"backlogTimeout" json:"backlogTimeout"`
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Address:     defaultAddress,
		ErrorDomain: defaultErrorDomain,
		Timeouts: TimeoutsConfig{
			Read:     config.TimeDuration(defaultTimeoutsRead),
			Write:    config.TimeDuration(defaultTimeoutsWrite),
			Idle:     config.TimeDuration(defaultTimeoutsIdle),
			Shutdown: config.TimeDuration(defaultTimeoutsShutdown),
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddress, defaultAddress)
	dp.SetDefault(cfgKeyErrorDomain, defaultErrorDomain)
	dp.SetDefault(cfgKeyTimeoutsRead, defaultTimeoutsRead)
	dp.SetDefault(cfgKeyTimeoutsWrite, defaultTimeoutsWrite)
	dp.SetDefault(cfgKeyTimeoutsIdle, defaultTimeoutsIdle)
	dp.SetDefault(cfgKeyTimeoutsShutdown, defaultTimeoutsShutdown)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if c.ErrorDomain, err = dp.GetString(cfgKeyErrorDomain); err != nil {
		return err
	}
	if err = c.Timeouts.set(dp); err != nil {
		return err
	}
	c.Middleware = MiddlewareConfig{}
	if dp.IsSet(cfgKeyMiddleware) {
		if err = dp.UnmarshalKey(cfgKeyMiddleware, &c.Middleware, config.WithTextUnmarshalerHook()); err != nil {
			return err
		}
	}
	if c.Middleware.BacklogLimit < 0 {
		return dp.WrapKeyErr(cfgKeyMiddlewareBacklog, fmt.Errorf("should be >= 0"))
	}
	return nil
}

func (t *TimeoutsConfig) set(dp config.DataProvider) error {
	for _, field := range []struct {
		key string
		dst *config.TimeDuration
	}{
		{cfgKeyTimeoutsRead, &t.Read},
		{cfgKeyTimeoutsWrite, &t.Write},
		{cfgKeyTimeoutsIdle, &t.Idle},
		{cfgKeyTimeoutsShutdown, &t.Shutdown},
	} {
		dur, err := dp.GetDuration(field.key)
		if err != nil {
			return err
		}
		if dur < 0 {
			return dp.WrapKeyErr(field.key, fmt.Errorf("should be >= 0"))
		}
		*field.dst = config.TimeDuration(dur)
	}
	return nil
}
