// Package apperr defines the two failure kinds the gateway distinguishes:
// a required setting is absent, or an external provider call failed.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports required settings that are absent. It is raised at the
// point of use, never lazily swallowed.
type ConfigError struct {
	Component string
	Missing   []string
}

func NewConfigError(component string, missing ...string) *ConfigError {
	return &ConfigError{Component: component, Missing: missing}
}

func (e *ConfigError) Error() string {
	if e.Component == "" {
		return "missing settings: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("missing %s settings: %s", e.Component, strings.Join(e.Missing, ", "))
}

// ProviderError reports a failed, timed out or unparseable external call.
// StatusCode is zero when no HTTP response was received.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s error %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

func NewProviderStatusError(provider, op string, statusCode int, body string) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, StatusCode: statusCode, Body: body}
}

func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}
