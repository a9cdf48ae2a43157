package registry

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindConfiguration Kind = "Configuration"
	KindValidation    Kind = "Validation"
	KindConflict      Kind = "Conflict"
	KindCapacity      Kind = "Capacity"
	KindAuthorization Kind = "Authorization"
	KindNotFound      Kind = "NotFound"
	KindCommit        Kind = "Commit"
)

// Code is a stable numeric error code. Codes never change meaning across versions.
type Code uint32

const (
	CodeNotAuthorized         Code = 100
	CodeInvalidHash           Code = 101
	CodeInvalidTitle          Code = 102
	CodeInvalidAuthority      Code = 103
	CodeAuthorityAlreadySet   Code = 104
	CodeMaterialAlreadyExists Code = 106
	CodeMaterialNotFound      Code = 107
	CodeAuthorityNotVerified  Code = 109
	CodeInvalidDescription    Code = 110
	CodeInvalidCategory       Code = 111
	CodeMaxMaterialsExceeded  Code = 114
	CodeInvalidLanguage       Code = 115
	CodeInvalidFormat         Code = 116
	CodeCommitRejected        Code = 117
)

var codeInfo = map[Code]struct {
	kind Kind
	name string
}{
	CodeNotAuthorized:         {KindAuthorization, "not-authorized"},
	CodeInvalidHash:           {KindValidation, "invalid-hash"},
	CodeInvalidTitle:          {KindValidation, "invalid-title"},
	CodeInvalidAuthority:      {KindConfiguration, "invalid-authority"},
	CodeAuthorityAlreadySet:   {KindConfiguration, "authority-already-set"},
	CodeMaterialAlreadyExists: {KindConflict, "material-already-exists"},
	CodeMaterialNotFound:      {KindNotFound, "material-not-found"},
	CodeAuthorityNotVerified:  {KindConfiguration, "authority-not-verified"},
	CodeInvalidDescription:    {KindValidation, "invalid-description"},
	CodeInvalidCategory:       {KindValidation, "invalid-category"},
	CodeMaxMaterialsExceeded:  {KindCapacity, "max-materials-exceeded"},
	CodeInvalidLanguage:       {KindValidation, "invalid-language"},
	CodeInvalidFormat:         {KindValidation, "invalid-format"},
	CodeCommitRejected:        {KindCommit, "commit-rejected"},
}

// Name returns the stable short name of c, e.g. "invalid-hash".
func (c Code) Name() string {
	if info, ok := codeInfo[c]; ok {
		return info.name
	}
	return fmt.Sprintf("code-%d", uint32(c))
}

// Kind returns the category of c.
func (c Code) Kind() Kind {
	if info, ok := codeInfo[c]; ok {
		return info.kind
	}
	return ""
}

// Known reports whether c is a defined code.
func (c Code) Known() bool {
	_, ok := codeInfo[c]
	return ok
}

func (c Code) String() string { return c.Name() }

// Error is the registry's structured error type.
//
// Every rejected operation returns exactly one *Error naming the first
// check that failed. Message is for humans; branch on Code or Kind.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("registry: %s: %s: %v", e.Code.Name(), e.Message, e.Cause)
	}
	return fmt.Sprintf("registry: %s: %s", e.Code.Name(), e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error with the same Code, so errors.Is(err, &Error{Code: c}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an *Error for code. The Kind is derived from the code.
func NewError(code Code, msg string) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: msg}
}

func newError(code Code, format string, args ...any) error {
	return NewError(code, fmt.Sprintf(format, args...))
}

func wrapError(code Code, msg string, cause error) error {
	e := NewError(code, msg)
	e.Cause = cause
	return e
}

// CodeOf returns the Code of err, or 0 if err is not (and does not wrap) an *Error.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Code
}

// IsCode reports whether err is (or wraps) an *Error with the given Code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
