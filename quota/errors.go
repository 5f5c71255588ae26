/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"errors"
	"fmt"
)

// ErrEmptyCallerID is returned when a decision is requested for an empty caller identity.
var ErrEmptyCallerID = errors.New("caller id is empty")

// ConfigurationError is returned by constructors when a parameter is invalid.
// Invalid values are never clamped.
type ConfigurationError struct {
	Param  string
	Reason string
}

func newConfigurationError(param, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}
