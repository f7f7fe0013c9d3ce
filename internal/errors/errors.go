// Package errors provides a hierarchical error system for author migrations.
// It implements typed errors that can be inspected and handled differently
// based on their category, so the command can tell fatal setup failures
// apart from per-record store failures.
package errors

import (
	"fmt"
	"os"
	"strings"
)

// ErrorType represents the category of error for classification and handling.
type ErrorType string

// Error type constants define the categories of errors that can occur during a migration.
const (
	ErrTypeFetch         ErrorType = "fetch"
	ErrTypeConfig        ErrorType = "config"
	ErrTypeParsing       ErrorType = "parsing"
	ErrTypeContentType   ErrorType = "content type"
	ErrTypeDefaultAuthor ErrorType = "default author"
	ErrTypeStore         ErrorType = "store"
)

// MigrateError is the base error type that provides structured error information.
// Path holds the export location, log file or record reference the error refers to.
type MigrateError struct {
	Type    ErrorType
	Path    string
	Message string
	Cause   error
}

func (e *MigrateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *MigrateError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a MigrateError of the same type, so
// errors.Is(err, &MigrateError{Type: ErrTypeFetch}) matches any fetch failure.
func (e *MigrateError) Is(target error) bool {
	t, ok := target.(*MigrateError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// FetchError reports that the user export could not be retrieved.
type FetchError struct {
	*MigrateError
}

// NewFetchError creates a fetch failure for the given export location.
func NewFetchError(location, message string, cause error) *FetchError {
	return &FetchError{
		MigrateError: &MigrateError{
			Type:    ErrTypeFetch,
			Path:    location,
			Message: message,
			Cause:   cause,
		},
	}
}

// HTTPStatusError is a fetch failure caused by a response status of 400 or above.
type HTTPStatusError struct {
	*FetchError
	StatusCode int
}

// NewHTTPStatusError creates a fetch failure carrying the offending status code.
func NewHTTPStatusError(location string, statusCode int) *HTTPStatusError {
	return &HTTPStatusError{
		FetchError: NewFetchError(location, fmt.Sprintf("unexpected HTTP status %d", statusCode), nil),
		StatusCode: statusCode,
	}
}

// ConfigError represents configuration validation errors.
type ConfigError struct {
	*MigrateError
}

// NewConfigError creates a configuration error without path context.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		MigrateError: &MigrateError{
			Type:    ErrTypeConfig,
			Message: message,
			Cause:   cause,
		},
	}
}

// NewConfigErrorWithPath creates a configuration error tied to a configuration file.
func NewConfigErrorWithPath(path, message string, cause error) *ConfigError {
	return &ConfigError{
		MigrateError: &MigrateError{
			Type:    ErrTypeConfig,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// ParsingError represents an export body that cannot be decoded into user records.
type ParsingError struct {
	*MigrateError
}

// NewParsingError creates a parsing error with export and context information.
func NewParsingError(path, message string, cause error) *ParsingError {
	return &ParsingError{
		MigrateError: &MigrateError{
			Type:    ErrTypeParsing,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// InvalidUserRecordError is a parsing error for a single export entry that
// lacks a required field.
type InvalidUserRecordError struct {
	*ParsingError
	Index int
	Field string
}

// NewInvalidUserRecordError creates an error for the export entry at index.
func NewInvalidUserRecordError(path string, index int, field string) *InvalidUserRecordError {
	return &InvalidUserRecordError{
		ParsingError: NewParsingError(path, fmt.Sprintf("user record %d is missing required field %q", index, field), nil),
		Index:        index,
		Field:        field,
	}
}

// ContentTypeError reports content type names the host does not recognize.
type ContentTypeError struct {
	*MigrateError
	Invalid []string
}

// NewContentTypeError builds the message naming every invalid type, joined
// the way a sentence would list them.
func NewContentTypeError(invalid []string) *ContentTypeError {
	var message string
	if len(invalid) == 1 {
		message = fmt.Sprintf("The post type %q is not a valid post type on this instance.", invalid[0])
	} else {
		message = fmt.Sprintf("The post types %s are not valid post types on this instance.", JoinQuoted(invalid))
	}

	return &ContentTypeError{
		MigrateError: &MigrateError{
			Type:    ErrTypeContentType,
			Message: message,
		},
		Invalid: invalid,
	}
}

// JoinQuoted renders names as `"a", "b" and "c"`.
func JoinQuoted(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}

	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
	}
}

// DefaultAuthorError reports that the fallback account could not be resolved.
type DefaultAuthorError struct {
	*MigrateError
	Identifier string
}

// NewDefaultAuthorError creates the resolution failure for identifier.
func NewDefaultAuthorError(identifier string, cause error) *DefaultAuthorError {
	return &DefaultAuthorError{
		MigrateError: &MigrateError{
			Type:    ErrTypeDefaultAuthor,
			Message: fmt.Sprintf("unable to retrieve default author %q; check the value being passed in, or run with --set-default=false", identifier),
			Cause:   cause,
		},
		Identifier: identifier,
	}
}

// StoreError represents a failure reported by the host store.
type StoreError struct {
	*MigrateError
}

// NewStoreError creates a store error. ref names the table, collection or
// record the operation targeted.
func NewStoreError(ref, message string, cause error) *StoreError {
	return &StoreError{
		MigrateError: &MigrateError{
			Type:    ErrTypeStore,
			Path:    ref,
			Message: message,
			Cause:   cause,
		},
	}
}

// WrapFileError converts an export file read failure into a fetch error.
func WrapFileError(path string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case os.IsNotExist(err):
		return NewFetchError(path, "file not found", err)
	case os.IsPermission(err):
		return NewFetchError(path, "file not readable", err)
	default:
		return NewFetchError(path, "unable to read local user export", err)
	}
}
