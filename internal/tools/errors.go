package tools

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

// Kind is the normalized failure class of a tool call.
type Kind string

const (
	KindBadRequest    Kind = "BadRequest"
	KindNotFound      Kind = "NotFound"
	KindStoreError    Kind = "StoreError"
	KindInternalError Kind = "InternalError"
)

// StatusCode maps the kind to the HTTP status used by the HTTP front ends.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToolError is the only failure shape callers observe.
type ToolError struct {
	kind    Kind
	message string
	detail  string
}

// Error implements error.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.message)
}

// Kind returns the failure class.
func (e *ToolError) Kind() Kind {
	if e == nil || e.kind == "" {
		return KindInternalError
	}
	return e.kind
}

// Message returns the human-readable failure summary.
func (e *ToolError) Message() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.message)
}

// Detail returns the redacted underlying error text. It is empty for
// BadRequest and NotFound.
func (e *ToolError) Detail() string {
	if e == nil {
		return ""
	}
	return e.detail
}

// StatusCode returns the attached HTTP status code.
func (e *ToolError) StatusCode() int {
	return e.Kind().StatusCode()
}

func validationErrorf(format string, args ...any) error {
	return &ToolError{
		kind:    KindBadRequest,
		message: fmt.Sprintf(format, args...),
	}
}

// Normalize classifies err into a ToolError. It is pure, and a ToolError
// passes through unchanged. Normalize(nil) returns nil.
func Normalize(err error) *ToolError {
	if err == nil {
		return nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	if errors.Is(err, cosmos.ErrInvalidInput) {
		return &ToolError{
			kind:    KindBadRequest,
			message: strings.Replace(err.Error(), cosmos.ErrInvalidInput.Error()+": ", "", 1),
		}
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusNotFound {
			return &ToolError{
				kind:    KindNotFound,
				message: "resource not found",
			}
		}
		code := strings.TrimSpace(respErr.ErrorCode)
		if code == "" {
			code = http.StatusText(respErr.StatusCode)
		}
		return &ToolError{
			kind:    KindStoreError,
			message: fmt.Sprintf("cosmos db error: %d %s", respErr.StatusCode, code),
			detail:  audit.RedactSensitiveText(err.Error()),
		}
	}

	return &ToolError{
		kind:    KindInternalError,
		message: "internal error",
		detail:  audit.RedactSensitiveText(err.Error()),
	}
}
