package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrAcquisition   = errors.New("acquisition error")
	ErrEmptyInput    = errors.New("empty input error")
	ErrEncode        = errors.New("encode error")
	ErrDelivery      = errors.New("delivery error")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// kinds lists markers in classification priority order. Pipeline-level kinds
// come first so a wrapped tool failure is reported by the stage that gave up.
var kinds = []struct {
	marker error
	name   string
}{
	{ErrValidation, "validation"},
	{ErrAcquisition, "acquisition"},
	{ErrEmptyInput, "empty_input"},
	{ErrEncode, "encode"},
	{ErrDelivery, "delivery"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrExternalTool, "external_tool"},
	{ErrTransient, "transient"},
}

// Error is a classified failure carrying the stage and operation that produced it.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails summarizes a failure for status records and user-facing output.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details classifies err and extracts the outermost Wrap context. Message is
// safe to show to end users: it never includes the wrapped cause.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err)}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.Stage
		details.Operation = wrapped.Operation
		details.Message = wrapped.Message
		details.Cause = wrapped.Cause
	}
	if details.Message == "" {
		details.Message = fallbackMessage(details.Kind, err)
	}
	return details
}

// Kind returns the taxonomy name for err, or "internal" when no marker matches.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return "internal"
}

func fallbackMessage(kind string, err error) string {
	switch kind {
	case "acquisition":
		return "no usable sources were acquired"
	case "empty_input":
		return "no valid audio clips to merge"
	case "encode":
		return "encoding the mashup failed"
	case "delivery":
		return "delivery failed"
	case "validation", "configuration", "not_found":
		return err.Error()
	default:
		return "internal error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
