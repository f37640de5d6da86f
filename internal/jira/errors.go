package jira

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pweiskircher/build-changes/internal/contracts"
	httpclient "github.com/pweiskircher/build-changes/internal/http"
)

// ErrorCode classifies a failed issue lookup. The adapter only ever searches,
// so each code names the stage of that one request that went wrong.
type ErrorCode string

const (
	ErrorCodeInvalidInput     ErrorCode = "invalid_input"
	ErrorCodeTransport        ErrorCode = "transport_error"
	ErrorCodeAuthFailed       ErrorCode = "auth_failed"
	ErrorCodeQueryRejected    ErrorCode = "query_rejected"
	ErrorCodeUnexpectedStatus ErrorCode = "unexpected_status"
	ErrorCodeResponseDecode   ErrorCode = "response_decode_failed"
)

// Error is a failed search. Details holds the messages Jira returned in
// errorMessages and errors, already in a stable order.
type Error struct {
	Code       ErrorCode
	ReasonCode contracts.ReasonCode
	StatusCode int
	Message    string
	Details    []string
	Err        error
	redactor   httpclient.Redactor
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	text := err.Message
	if text == "" {
		text = "jira issue search failed"
	}
	if err.StatusCode != 0 {
		text = fmt.Sprintf("%s (status %d)", text, err.StatusCode)
	}
	if len(err.Details) > 0 {
		text += ": " + strings.Join(err.Details, "; ")
	}
	if err.Err != nil {
		text = fmt.Sprintf("%s: %v", text, err.Err)
	}
	return err.redactor.Redact(text)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var jiraErr *Error
	return errors.As(err, &jiraErr) && jiraErr.Code == code
}
