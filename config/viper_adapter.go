/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter is DataProvider implementation that uses viper library under the hood.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars enables the ability to use environment variables for configuration parameters.
// Prefix defines what environment variables will be looked.
// E.g., if your prefix is "quota", the env registry will look for env
// variables that start with "QUOTA_" ("quota.fixedWindow.maxTokens" -> "QUOTA_QUOTA_FIXEDWINDOW_MAXTOKENS").
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.AutomaticEnv()
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.SetEnvPrefix(prefix)
}

// Set sets the value for the key in the override register.
func (va *ViperAdapter) Set(key string, value interface{}) {
	va.viper.Set(key, value)
}

// SetDefault sets the default value for this key.
// Default only used when no value is provided by the user via config or ENV.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

// IsSet checks to see if the key has been set in any of the data locations.
// IsSet is case-insensitive for a key.
func (va *ViperAdapter) IsSet(key string) bool {
	return va.viper.IsSet(key)
}

// Get retrieves any value given the key to use.
func (va *ViperAdapter) Get(key string) interface{} {
	return va.viper.Get(key)
}

// SetFromFile specifies that discovering and loading configuration data will be performed from file.
func (va *ViperAdapter) SetFromFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	return va.viper.ReadInConfig()
}

// SetFromReader specifies that discovering and loading configuration data will be performed from reader.
func (va *ViperAdapter) SetFromReader(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

// GetBool tries to retrieve the value associated with the key as a bool.
func (va *ViperAdapter) GetBool(key string) (res bool, err error) {
	res, err = cast.ToBoolE(va.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetInt tries to retrieve the value associated with the key as an integer.
func (va *ViperAdapter) GetInt(key string) (res int, err error) {
	res, err = cast.ToIntE(va.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetFloat64 tries to retrieve the value associated with the key as a float64.
func (va *ViperAdapter) GetFloat64(key string) (res float64, err error) {
	res, err = cast.ToFloat64E(va.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetString tries to retrieve the value associated with the key as a string.
func (va *ViperAdapter) GetString(key string) (res string, err error) {
	res, err = cast.ToStringE(va.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetStringFromSet tries to retrieve the value associated with the key as a string from the specified set.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, s := range set {
		if (ignoreCase && strings.EqualFold(str, s)) || str == s {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetDuration tries to retrieve the value associated with the key as a duration.
func (va *ViperAdapter) GetDuration(key string) (res time.Duration, err error) {
	val := va.Get(key)
	if val == nil {
		return
	}
	res, err = cast.ToDurationE(val)
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetByteSize tries to retrieve the value associated with the key as a size in bytes.
// Both integers and human-readable strings ("250M", "1Gi") are accepted.
func (va *ViperAdapter) GetByteSize(key string) (ByteSize, error) {
	switch v := va.Get(key).(type) {
	case nil:
		return 0, nil
	case string:
		bs, err := parseByteSizeFromString(v)
		return bs, WrapKeyErrIfNeeded(key, err)
	case ByteSize:
		return v, nil
	default:
		num, err := cast.ToInt64E(v)
		if err != nil {
			return 0, WrapKeyErr(key, fmt.Errorf("unsupported type for byte size: %T", v))
		}
		if num < 0 {
			return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %d", num))
		}
		return ByteSize(num), nil
	}
}

// UnmarshalKey takes a single key and unmarshals it into a struct.
func (va *ViperAdapter) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	options := make([]viper.DecoderConfigOption, len(opts))
	for i, opt := range opts {
		options[i] = viper.DecoderConfigOption(opt)
	}
	return WrapKeyErrIfNeeded(key, va.viper.UnmarshalKey(key, rawVal, options...))
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}
