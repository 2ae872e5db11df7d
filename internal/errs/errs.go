package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindSchema     Kind = "schema_error"
	KindIngest     Kind = "ingest_error"
	KindCompletion Kind = "completion_error"
	KindExecution  Kind = "execution_error"
	KindValidation Kind = "invalid_request"
	KindNotFound   Kind = "not_found"
	KindConfig     Kind = "config_error"
	KindInternal   Kind = "internal_error"
)

// Error is a categorized failure. Table is set for ingestion failures.
type Error struct {
	Kind    Kind
	Message string
	Table   string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Cause != nil:
		return e.Cause.Error()
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

func Ingest(table string, err error) *Error {
	return &Error{Kind: KindIngest, Message: fmt.Sprintf("import table %q", table), Table: table, Cause: err}
}

func IsKind(err error, kind Kind) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind == kind
	}
	return false
}

func KindOf(err error) Kind {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind
	}
	return KindInternal
}

// Cause returns the innermost non-categorized error message.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var structured *Error
	for errors.As(err, &structured) {
		if structured.Cause == nil {
			return structured.Message
		}
		err = structured.Cause
	}
	return err.Error()
}
