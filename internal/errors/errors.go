package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors shared by every billing component. Errors returned by the
// core are built with the ErrorBuilder and marked with exactly one of these.
var (
	ErrValidation    = new(ErrCodeValidation, "validation error")
	ErrNotFound      = new(ErrCodeNotFound, "resource not found")
	ErrConflict      = new(ErrCodeConflict, "state conflict")
	ErrAlreadyExists = new(ErrCodeAlreadyExists, "resource already exists")
	ErrProvider      = new(ErrCodeProvider, "tax provider error")
	ErrConfiguration = new(ErrCodeConfiguration, "configuration error")
	ErrHTTPClient    = new(ErrCodeHTTPClient, "http client error")
	ErrDatabase      = new(ErrCodeDatabase, "database error")
	ErrSystem        = new(ErrCodeSystemError, "system error")
)

const (
	ErrCodeValidation    = "validation_error"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeProvider      = "provider_error"
	ErrCodeConfiguration = "configuration_error"
	ErrCodeHTTPClient    = "http_client_error"
	ErrCodeDatabase      = "database_error"
	ErrCodeSystemError   = "system_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so that marked errors compare equal to their sentinel.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

// New creates an InternalError with the given code. Used by packages that
// wrap a sentinel with extra fields, e.g. httpclient.Error.
func New(code string, message string) *InternalError {
	return new(code, message)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsProvider reports whether err came from a tax provider and may be
// recovered by falling back to manual resolution.
func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsSystem(err error) bool {
	return errors.Is(err, ErrSystem)
}

// Code returns the machine-readable code of the first sentinel err is marked
// with, or ErrCodeSystemError when none matches.
func Code(err error) string {
	for _, sentinel := range []*InternalError{
		ErrValidation,
		ErrNotFound,
		ErrConflict,
		ErrAlreadyExists,
		ErrProvider,
		ErrConfiguration,
		ErrHTTPClient,
		ErrDatabase,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Code
		}
	}
	return ErrCodeSystemError
}

// ExitCode maps an error to a process exit code for the CLI.
func ExitCode(err error) int {
	switch Code(err) {
	case ErrCodeValidation:
		return 2
	case ErrCodeNotFound:
		return 3
	case ErrCodeConflict, ErrCodeAlreadyExists:
		return 4
	case ErrCodeConfiguration:
		return 5
	default:
		return 1
	}
}
