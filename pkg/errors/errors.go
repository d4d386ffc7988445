package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies reconciliation failures
type Kind string

const (
	KindMissingArtifact     Kind = "missing_artifact"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation_error"
	KindMalformedArtifact   Kind = "malformed_artifact"
	KindIO                  Kind = "io_error"
)

type Error struct {
	Kind    Kind
	Message string
	// Path is the file the error relates to, if any.
	Path  string
	Meta  map[string]any
	cause error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an Error with a formatted message. A %w verb wraps the
// matching error argument as the cause.
func Newf(kind Kind, format string, args ...any) *Error {
	e := &Error{Kind: kind}
	for _, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			e.cause = err
			break
		}
	}
	e.Message = fmt.Sprintf(strings.ReplaceAll(format, "%w", "%v"), args...)
	return e
}

// Wrap attaches a kind to err. An *Error is returned unchanged.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if stderrors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: kind, Message: msg + ": " + err.Error(), cause: err}
}

func MissingArtifact(path string) *Error {
	return New(KindMissingArtifact, "no dbt project configured: artifact not found").WithPath(path)
}

func UnresolvedReference(ref string) *Error {
	return New(KindUnresolvedReference, fmt.Sprintf("reference %s does not match any model in the manifest", ref)).WithMeta("ref", ref)
}

func Conflict(path string) *Error {
	return New(KindConflict, "file changed on disk since it was loaded; reload or force overwrite").WithPath(path)
}

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func Malformed(path string, err error) *Error {
	return Newf(KindMalformedArtifact, "failed to parse: %w", err).WithPath(path)
}

func (e *Error) Error() string {
	if e.Path == "" {
		return string(e.Kind) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
	return e
}

func (e *Error) statusCode() int {
	switch e.Kind {
	case KindMissingArtifact:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnresolvedReference, KindMalformedArtifact:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) ToHTTPError() *httperror.HTTPError {
	httpErr := httperror.NewHTTPError(e.statusCode(), e.Message).AddMetaValue("kind", string(e.Kind))
	if e.Path != "" {
		httpErr = httpErr.AddMetaValue("path", e.Path)
	}
	for k, v := range e.Meta {
		httpErr = httpErr.AddMetaValue(k, v)
	}
	return httpErr
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsMissingArtifact(err error) bool { return KindOf(err) == KindMissingArtifact }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsMalformed(err error) bool { return KindOf(err) == KindMalformedArtifact }

// ToHTTPError converts any error for the transport layer; non-domain errors become 500s.
func ToHTTPError(err error) *httperror.HTTPError {
	var e *Error
	if stderrors.As(err, &e) {
		return e.ToHTTPError()
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}
