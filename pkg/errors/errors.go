// Package errors provides structured error handling for walletlink.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication failed (keystore passphrase)
	ExitNotFound   = 4 // Resource not found
	ExitConnection = 5 // Wallet or endpoint connection failed
)

// LinkError is the structured error type for walletlink.
type LinkError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *LinkError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for LinkError.
func (e *LinkError) Is(target error) bool {
	var t *LinkError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &LinkError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &LinkError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrAuthentication = &LinkError{
		Code:     "AUTHENTICATION_FAILED",
		Message:  "authentication failed",
		ExitCode: ExitAuth,
	}

	ErrNotFound = &LinkError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Provider and adapter errors.
	ErrProviderNotFound = &LinkError{
		Code:     "PROVIDER_NOT_FOUND",
		Message:  "wallet provider not found",
		ExitCode: ExitNotFound,
	}

	ErrAdapterConstruction = &LinkError{
		Code:     "ADAPTER_CONSTRUCTION_FAILED",
		Message:  "wallet adapter could not be created",
		ExitCode: ExitConnection,
	}

	ErrNoAdapter = &LinkError{
		Code:     "NO_ADAPTER",
		Message:  "no wallet adapter is active",
		ExitCode: ExitConnection,
	}

	ErrNotConnected = &LinkError{
		Code:     "NOT_CONNECTED",
		Message:  "wallet is not connected",
		ExitCode: ExitConnection,
	}

	ErrConnectFailed = &LinkError{
		Code:     "CONNECT_FAILED",
		Message:  "wallet connection failed",
		ExitCode: ExitConnection,
	}

	ErrManagerClosed = &LinkError{
		Code:     "MANAGER_CLOSED",
		Message:  "session manager is closed",
		ExitCode: ExitGeneral,
	}

	// Keystore errors.
	ErrKeystoreNotFound = &LinkError{
		Code:     "KEYSTORE_NOT_FOUND",
		Message:  "keystore file not found",
		ExitCode: ExitNotFound,
	}

	ErrKeystoreExists = &LinkError{
		Code:     "KEYSTORE_EXISTS",
		Message:  "keystore already exists",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &LinkError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &LinkError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong passphrase or corrupted keystore",
		ExitCode: ExitAuth,
	}

	ErrInvalidAddress = &LinkError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	// Backend errors.
	ErrNetworkError = &LinkError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrBackendUnavailable = &LinkError{
		Code:     "BACKEND_UNAVAILABLE",
		Message:  "account backend is not configured",
		ExitCode: ExitGeneral,
	}

	// Config errors.
	ErrConfigNotFound = &LinkError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &LinkError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &LinkError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}
)

// New creates a new LinkError with the given code and message.
func New(code, message string) *LinkError {
	return &LinkError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Code:       le.Code,
			Message:    fmt.Sprintf("%s: %s", msg, le.Message),
			Details:    le.Details,
			Suggestion: le.Suggestion,
			Cause:      err,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Code:       le.Code,
			Message:    le.Message,
			Details:    details,
			Suggestion: le.Suggestion,
			Cause:      le.Cause,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Code:       le.Code,
			Message:    le.Message,
			Details:    le.Details,
			Suggestion: suggestion,
			Cause:      le.Cause,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var le *LinkError
	if errors.As(err, &le) {
		return le.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Code
	}
	return "GENERAL_ERROR"
}

// SuggestionOf returns the suggestion attached to an error, if any.
func SuggestionOf(err error) string {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Suggestion
	}
	return ""
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
