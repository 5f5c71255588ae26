/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-quota/config"
)

const cfgDefaultKeyPrefix = "quota"

const (
	cfgKeyStrategy                      = "strategy"
	cfgKeyFixedWindowMaxTokens          = "fixedWindow.maxTokens"
	cfgKeyFixedWindowWindow             = "fixedWindow.window"
	cfgKeyFixedWindowBurstBonus         = "fixedWindow.burstBonus"
	cfgKeyContinuousRefillRatePerMinute = "continuousRefill.ratePerMinute"
	cfgKeyContinuousRefillBurstLimit    = "continuousRefill.burstLimit"
	cfgKeyContinuousRefillStartFull     = "continuousRefill.startFull"
	cfgKeyStoreMaxKeys                  = "store.maxKeys"
	cfgKeyStoreIdleTTL                  = "store.idleTTL"
	cfgKeyStoreCleanupInterval          = "store.cleanupInterval"
)

// Default values.
const (
	DefaultStrategy              = StrategyFixedWindowBonus
	DefaultFixedWindowMaxTokens  = 60
	DefaultFixedWindowWindow     = time.Minute
	DefaultContinuousRefillRate  = 60
	DefaultContinuousRefillBurst = 10
	DefaultStoreCleanupInterval  = time.Minute
)

var availableStrategies = []string{StrategyFixedWindowBonus, StrategyContinuousRefill}

// Config represents a set of configuration parameters for the quota limiter.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	Strategy         string                 `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	FixedWindow      FixedWindowConfig      `mapstructure:"fixedWindow" yaml:"fixedWindow" json:"fixedWindow"`
	ContinuousRefill ContinuousRefillConfig `mapstructure:"continuousRefill" yaml:"continuousRefill" json:"continuousRefill"`
	Store            StoreConfig            `mapstructure:"store" yaml:"store" json:"store"`

	keyPrefix string
}

// FixedWindowConfig is a configuration for the fixed_window_bonus strategy.
type FixedWindowConfig struct {
	MaxTokens  int                 `mapstructure:"maxTokens" yaml:"maxTokens" json:"maxTokens"`
	Window     config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`
	BurstBonus int                 `mapstructure:"burstBonus" yaml:"burstBonus" json:"burstBonus"`
}

// ContinuousRefillConfig is a configuration for the continuous_refill strategy.
type ContinuousRefillConfig struct {
	RatePerMinute float64 `mapstructure:"ratePerMinute" yaml:"ratePerMinute" json:"ratePerMinute"`
	BurstLimit    int     `mapstructure:"burstLimit" yaml:"burstLimit" json:"burstLimit"`
	StartFull     bool    `mapstructure:"startFull" yaml:"startFull" json:"startFull"`
}

// StoreConfig is a configuration for the storage of caller records.
type StoreConfig struct {
	// MaxKeys limits the number of tracked callers. Zero means an unbounded store.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	// IdleTTL is the time after which a record of an inactive caller is forgotten. Zero means never.
	// Records that still affect decisions (see Strategy.RetainsIdleRecord) are not forgotten.
	// Only used when MaxKeys is set.
	IdleTTL config.TimeDuration `mapstructure:"idleTTL" yaml:"idleTTL" json:"idleTTL"`

	// CleanupInterval is how often expired records are swept.
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Strategy = DefaultStrategy
	cfg.FixedWindow = FixedWindowConfig{
		MaxTokens: DefaultFixedWindowMaxTokens,
		Window:    config.TimeDuration(DefaultFixedWindowWindow),
	}
	cfg.ContinuousRefill = ContinuousRefillConfig{
		RatePerMinute: DefaultContinuousRefillRate,
		BurstLimit:    DefaultContinuousRefillBurst,
	}
	cfg.Store.CleanupInterval = config.TimeDuration(DefaultStoreCleanupInterval)
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyStrategy, DefaultStrategy)
	dp.SetDefault(cfgKeyFixedWindowMaxTokens, DefaultFixedWindowMaxTokens)
	dp.SetDefault(cfgKeyFixedWindowWindow, DefaultFixedWindowWindow.String())
	dp.SetDefault(cfgKeyContinuousRefillRatePerMinute, DefaultContinuousRefillRate)
	dp.SetDefault(cfgKeyContinuousRefillBurstLimit, DefaultContinuousRefillBurst)
	dp.SetDefault(cfgKeyStoreCleanupInterval, DefaultStoreCleanupInterval.String())
}

// Set sets quota configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	strategy, err := dp.GetStringFromSet(cfgKeyStrategy, availableStrategies, true)
	if err != nil {
		return err
	}
	c.Strategy = strings.ToLower(strategy)

	if err = c.setFixedWindowConfig(dp); err != nil {
		return err
	}
	if err = c.setContinuousRefillConfig(dp); err != nil {
		return err
	}
	if err = c.setStoreConfig(dp); err != nil {
		return err
	}
	return c.validate(dp)
}

func (c *Config) setFixedWindowConfig(dp config.DataProvider) error {
	var err error
	if c.FixedWindow.MaxTokens, err = dp.GetInt(cfgKeyFixedWindowMaxTokens); err != nil {
		return err
	}
	var window time.Duration
	if window, err = dp.GetDuration(cfgKeyFixedWindowWindow); err != nil {
		return err
	}
	c.FixedWindow.Window = config.TimeDuration(window)
	if c.FixedWindow.BurstBonus, err = dp.GetInt(cfgKeyFixedWindowBurstBonus); err != nil {
		return err
	}
	return nil
}

func (c *Config) setContinuousRefillConfig(dp config.DataProvider) error {
	var err error
	if c.ContinuousRefill.RatePerMinute, err = dp.GetFloat64(cfgKeyContinuousRefillRatePerMinute); err != nil {
		return err
	}
	if c.ContinuousRefill.BurstLimit, err = dp.GetInt(cfgKeyContinuousRefillBurstLimit); err != nil {
		return err
	}
	if c.ContinuousRefill.StartFull, err = dp.GetBool(cfgKeyContinuousRefillStartFull); err != nil {
		return err
	}
	return nil
}

func (c *Config) setStoreConfig(dp config.DataProvider) error {
	var err error
	if c.Store.MaxKeys, err = dp.GetInt(cfgKeyStoreMaxKeys); err != nil {
		return err
	}
	if c.Store.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyStoreMaxKeys, fmt.Errorf("should be >= 0"))
	}
	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyStoreIdleTTL); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyStoreIdleTTL, fmt.Errorf("should be >= 0"))
	}
	c.Store.IdleTTL = config.TimeDuration(dur)
	if dur, err = dp.GetDuration(cfgKeyStoreCleanupInterval); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyStoreCleanupInterval, fmt.Errorf("should be > 0"))
	}
	c.Store.CleanupInterval = config.TimeDuration(dur)
	return nil
}

// validate checks the parameters of the selected strategy and their consistency with the store.
func (c *Config) validate(dp config.DataProvider) error {
	strategy, err := NewStrategyFromConfig(c)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return dp.WrapKeyErr(c.strategyKey(cfgErr.Param), errors.New(cfgErr.Reason))
		}
		return err
	}
	if c.Store.MaxKeys == 0 {
		return nil
	}
	if err = validateIdleTTL(strategy, time.Duration(c.Store.IdleTTL)); err != nil {
		return dp.WrapKeyErr(cfgKeyStoreIdleTTL, err)
	}
	return nil
}

func (c *Config) strategyKey(param string) string {
	switch param {
	case "maxTokensPerWindow":
		return cfgKeyFixedWindowMaxTokens
	case "windowLength":
		return cfgKeyFixedWindowWindow
	case "burstBonusTokens":
		return cfgKeyFixedWindowBurstBonus
	case "ratePerMinute":
		return cfgKeyContinuousRefillRatePerMinute
	case "burstLimit":
		return cfgKeyContinuousRefillBurstLimit
	}
	return param
}

// NewStrategyFromConfig creates the strategy selected in the configuration.
func NewStrategyFromConfig(cfg *Config) (Strategy, error) {
	switch strings.ToLower(cfg.Strategy) {
	case StrategyFixedWindowBonus:
		return NewFixedWindowBonus(
			cfg.FixedWindow.MaxTokens, time.Duration(cfg.FixedWindow.Window), cfg.FixedWindow.BurstBonus)
	case StrategyContinuousRefill:
		return NewContinuousRefillWithOpts(
			cfg.ContinuousRefill.RatePerMinute, cfg.ContinuousRefill.BurstLimit,
			ContinuousRefillOpts{StartFull: cfg.ContinuousRefill.StartFull})
	}
	return nil, newConfigurationError("strategy", "unknown value %q, should be one of %v", cfg.Strategy, availableStrategies)
}

// NewLimiterFromConfig creates a Limiter from the configuration.
// If opts.Store is nil, the store is created from the configuration too:
// a LRUStore when Store.MaxKeys is set, and an unbounded MapStore otherwise.
func NewLimiterFromConfig(cfg *Config, opts LimiterOpts, storeOpts LRUStoreOpts) (*Limiter, error) {
	strategy, err := NewStrategyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		if opts.Store, err = newStoreFromConfig(strategy, cfg.Store, opts.Clock, storeOpts); err != nil {
			return nil, err
		}
	}
	return NewWithOpts(strategy, opts)
}

func newStoreFromConfig(strategy Strategy, cfg StoreConfig, clock Clock, storeOpts LRUStoreOpts) (Store, error) {
	if cfg.MaxKeys == 0 {
		return NewMapStore(), nil
	}
	storeOpts.IdleTTL = time.Duration(cfg.IdleTTL)
	storeOpts.Strategy = strategy
	if storeOpts.Clock == nil {
		storeOpts.Clock = clock
	}
	return NewLRUStoreWithOpts(cfg.MaxKeys, storeOpts)
}
