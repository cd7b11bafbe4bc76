package errors

import (
	goerrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/tally/internal/logger"
)

// Sentinels for each error class. Typed errors below match them with errors.Is.
var (
	ErrValidation     = goerrors.New("validation error")
	ErrNotFound       = goerrors.New("not found")
	ErrStorage        = goerrors.New("storage error")
	ErrNetwork        = goerrors.New("network error")
	ErrRemoteRejected = goerrors.New("remote rejected")
)

// ValidationError describes one structural or semantic rule a record or payload broke.
type ValidationError struct {
	Record  string // e.g. "challenge c1", "entries[3]", "payload"
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	switch {
	case e.Record != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Record, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	case e.Record != "":
		return fmt.Sprintf("%s: %s", e.Record, e.Message)
	}
	return e.Message
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors collects every problem found in one pass so a user can fix
// a backup file once.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(errs), strings.Join(msgs, "; "))
}

func (errs ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Err returns nil for an empty list so callers can `return errs.Err()`.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// NewValidation builds a single-field ValidationError.
func NewValidation(record, field, format string, args ...interface{}) ValidationError {
	return ValidationError{Record: record, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned by read APIs that promise existence.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError wraps a persistence-layer failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorage wraps err as a StorageError, passing nil through.
func NewStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// NetworkError means the Remote Gateway could not be reached (or the call was
// cancelled or timed out before it answered).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// RemoteRejectedError means the Remote Gateway answered with a failure result.
type RemoteRejectedError struct {
	Status  int
	Message string
}

func (e *RemoteRejectedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote rejected request (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote rejected request: %s", e.Message)
}

func (e *RemoteRejectedError) Is(target error) bool { return target == ErrRemoteRejected }

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return goerrors.Is(err, target) }

func As(err error, target interface{}) bool { return goerrors.As(err, target) }

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Describe returns a plain-language explanation for the error classes a user
// can act on. Unknown errors fall back to their own text.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrNetwork):
		return "Could not reach the sync server. Your local data is untouched; check your connection and try again."
	case Is(err, ErrRemoteRejected):
		return "The sync server refused the request. Your local data is untouched. " + err.Error()
	case Is(err, ErrValidation):
		return "Some records are invalid: " + err.Error()
	case Is(err, ErrStorage):
		return "The local database failed: " + err.Error()
	}
	return err.Error()
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
