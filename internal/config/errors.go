package config

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCode names the stage at which the config file was rejected.
type ErrorCode string

const (
	ErrorCodeReadFailed       ErrorCode = "config_read_failed"
	ErrorCodeParseFailed      ErrorCode = "config_parse_failed"
	ErrorCodeValidationFailed ErrorCode = "config_validation_failed"
)

// Error is a problem with the config file itself. Line and Column are 1-based
// and only set when the JSON decoder reported where it stopped.
type Error struct {
	Code   ErrorCode
	Path   string
	Line   int
	Column int
	Err    error
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	location := err.Path
	if err.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", location, err.Line, err.Column)
	}

	var text string
	switch err.Code {
	case ErrorCodeReadFailed:
		text = "cannot read config file " + location
	case ErrorCodeParseFailed:
		text = "config file " + location + " is not valid"
	case ErrorCodeValidationFailed:
		text = "config file " + location + " failed validation"
	default:
		text = "config file " + location + " was rejected"
	}
	if err.Err == nil {
		return text
	}
	return fmt.Sprintf("%s: %v", text, err.Err)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

// Missing reports whether the file does not exist at all.
func (err *Error) Missing() bool {
	return err != nil && err.Code == ErrorCodeReadFailed && errors.Is(err.Err, fs.ErrNotExist)
}

func IsErrorCode(err error, code ErrorCode) bool {
	var configErr *Error
	return errors.As(err, &configErr) && configErr.Code == code
}

type ResolveErrorCode string

const (
	ResolveErrorCodeInvalidConfig   ResolveErrorCode = "invalid_config"
	ResolveErrorCodeInvalidValue    ResolveErrorCode = "invalid_setting_value"
	ResolveErrorCodeUnknownProvider ResolveErrorCode = "unknown_ci_provider"
	ResolveErrorCodeMissingServer   ResolveErrorCode = "missing_server_url"
	ResolveErrorCodeMissingOrg      ResolveErrorCode = "missing_buildkite_organization"
	ResolveErrorCodeMissingToken    ResolveErrorCode = "missing_api_token"
)

// ResolveError is a runtime setting that could not be resolved from flags,
// environment and file. Setting names how the user supplies it, for example
// "--server or TEAMCITY_URL".
type ResolveError struct {
	Code    ResolveErrorCode
	Setting string
	Message string
	Err     error
}

func (err *ResolveError) Error() string {
	if err == nil {
		return ""
	}

	text := err.Message
	if err.Setting != "" {
		text = err.Setting + ": " + text
	}
	text = "invalid settings: " + text
	if err.Err == nil {
		return text
	}
	return fmt.Sprintf("%s: %v", text, err.Err)
}

func (err *ResolveError) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsResolveErrorCode(err error, code ResolveErrorCode) bool {
	var resolveErr *ResolveError
	return errors.As(err, &resolveErr) && resolveErr.Code == code
}
