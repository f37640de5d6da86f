package commands

import (
	"errors"
	"fmt"

	"github.com/pweiskircher/build-changes/internal/config"
	"github.com/pweiskircher/build-changes/internal/contracts"
)

type TargetErrorCode string

const (
	TargetErrorCodeMissingBuildType    TargetErrorCode = "missing_build_type"
	TargetErrorCodeBuildTypeUnresolved TargetErrorCode = "build_type_unresolved"
	TargetErrorCodeNoSuccessfulBuild   TargetErrorCode = "no_successful_build"
	TargetErrorCodeNoRunningBuild      TargetErrorCode = "no_running_build"
	TargetErrorCodeMissingServer       TargetErrorCode = "missing_server"
	TargetErrorCodeInvalidSettings     TargetErrorCode = "invalid_settings"
)

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrMissingBuildType    = &TargetError{Code: TargetErrorCodeMissingBuildType}
	ErrBuildTypeUnresolved = &TargetError{Code: TargetErrorCodeBuildTypeUnresolved}
	ErrNoSuccessfulBuild   = &TargetError{Code: TargetErrorCodeNoSuccessfulBuild}
	ErrNoRunningBuild      = &TargetError{Code: TargetErrorCodeNoRunningBuild}
	ErrMissingServer       = &TargetError{Code: TargetErrorCodeMissingServer}
)

// TargetError reports insufficient or invalid targeting information: the run
// cannot tell which build type or which range anchors it should work on.
type TargetError struct {
	Code       TargetErrorCode
	ReasonCode contracts.ReasonCode
	Message    string
	Hint       string
	Err        error
}

func (err *TargetError) Error() string {
	if err == nil {
		return ""
	}

	message := err.Message
	if message == "" {
		message = string(err.Code)
	}
	message = "failed to resolve build target: " + message
	if err.Err != nil {
		message = fmt.Sprintf("%s: %v", message, err.Err)
	}
	if err.Hint != "" {
		message += " (" + err.Hint + ")"
	}
	return message
}

func (err *TargetError) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func (err *TargetError) Is(target error) bool {
	other, ok := target.(*TargetError)
	if !ok || err == nil || other == nil {
		return false
	}
	return err.Code == other.Code
}

// IsConfigurationError reports whether err means the caller supplied
// insufficient or invalid settings, as opposed to a remote or render failure.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}

	var targetErr *TargetError
	if errors.As(err, &targetErr) {
		return true
	}
	var configErr *config.Error
	if errors.As(err, &configErr) {
		return true
	}
	var resolveErr *config.ResolveError
	return errors.As(err, &resolveErr)
}
