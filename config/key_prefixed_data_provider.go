/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
	"strings"
	"time"
)

// KeyPrefixedDataProvider is a DataProvider implementation that uses a specified key prefix for parsing configuration parameters.
type KeyPrefixedDataProvider struct {
	delegate  DataProvider
	keyPrefix string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate: delegate, keyPrefix: keyPrefix}
}

func (kp *KeyPrefixedDataProvider) makeKey(key string) string {
	return strings.Trim(kp.keyPrefix+"."+key, ".")
}

// UseEnvVars enables the ability to use environment variables for configuration parameters.
func (kp *KeyPrefixedDataProvider) UseEnvVars(prefix string) {
	kp.delegate.UseEnvVars(prefix)
}

// Set sets the value for the key in the override register.
func (kp *KeyPrefixedDataProvider) Set(key string, value interface{}) {
	kp.delegate.Set(kp.makeKey(key), value)
}

// SetDefault sets the default value for this key.
func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.makeKey(key), value)
}

// SetFromFile loads configuration data from file.
func (kp *KeyPrefixedDataProvider) SetFromFile(path string, dataType DataType) error {
	return kp.delegate.SetFromFile(path, dataType)
}

// SetFromReader loads configuration data from reader.
func (kp *KeyPrefixedDataProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	return kp.delegate.SetFromReader(reader, dataType)
}

// IsSet checks to see if the key has been set in any of the data locations.
func (kp *KeyPrefixedDataProvider) IsSet(key string) bool {
	return kp.delegate.IsSet(kp.makeKey(key))
}

// Get retrieves any value given the key to use.
func (kp *KeyPrefixedDataProvider) Get(key string) interface{} {
	return kp.delegate.Get(kp.makeKey(key))
}

// GetBool tries to retrieve the value associated with the key as a bool.
func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.makeKey(key))
}

// GetInt tries to retrieve the value associated with the key as an integer.
func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.makeKey(key))
}

// GetFloat64 tries to retrieve the value associated with the key as a float64.
func (kp *KeyPrefixedDataProvider) GetFloat64(key string) (float64, error) {
	return kp.delegate.GetFloat64(kp.makeKey(key))
}

// GetString tries to retrieve the value associated with the key as a string.
func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.makeKey(key))
}

// GetStringFromSet tries to retrieve the value associated with the key as a string from the specified set.
func (kp *KeyPrefixedDataProvider) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	return kp.delegate.GetStringFromSet(kp.makeKey(key), set, ignoreCase)
}

// GetDuration tries to retrieve the value associated with the key as a duration.
func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.makeKey(key))
}

// GetByteSize tries to retrieve the value associated with the key as a size in bytes.
func (kp *KeyPrefixedDataProvider) GetByteSize(key string) (ByteSize, error) {
	return kp.delegate.GetByteSize(kp.makeKey(key))
}

// UnmarshalKey takes a single key and unmarshals it into a struct.
func (kp *KeyPrefixedDataProvider) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.makeKey(key), rawVal, opts...)
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func (kp *KeyPrefixedDataProvider) WrapKeyErr(key string, err error) error {
	return kp.delegate.WrapKeyErr(kp.makeKey(key), err)
}
