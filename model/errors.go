package model

import (
	"errors"
	"fmt"

	"xdao.co/matreg/registry"
)

type ErrorCode string

const (
	ErrNotAuthorized         ErrorCode = "NOT_AUTHORIZED"
	ErrInvalidHash           ErrorCode = "INVALID_HASH"
	ErrInvalidTitle          ErrorCode = "INVALID_TITLE"
	ErrInvalidAuthority      ErrorCode = "INVALID_AUTHORITY"
	ErrAuthorityAlreadySet   ErrorCode = "AUTHORITY_ALREADY_SET"
	ErrMaterialAlreadyExists ErrorCode = "MATERIAL_ALREADY_EXISTS"
	ErrMaterialNotFound      ErrorCode = "MATERIAL_NOT_FOUND"
	ErrAuthorityNotVerified  ErrorCode = "AUTHORITY_NOT_VERIFIED"
	ErrInvalidDescription    ErrorCode = "INVALID_DESCRIPTION"
	ErrInvalidCategory       ErrorCode = "INVALID_CATEGORY"
	ErrMaxMaterialsExceeded  ErrorCode = "MAX_MATERIALS_EXCEEDED"
	ErrInvalidLanguage       ErrorCode = "INVALID_LANGUAGE"
	ErrInvalidFormat         ErrorCode = "INVALID_FORMAT"
	ErrCommitRejected        ErrorCode = "COMMIT_REJECTED"

	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInternal       ErrorCode = "INTERNAL"
)

var registryCodes = map[registry.Code]ErrorCode{
	registry.CodeNotAuthorized:         ErrNotAuthorized,
	registry.CodeInvalidHash:           ErrInvalidHash,
	registry.CodeInvalidTitle:          ErrInvalidTitle,
	registry.CodeInvalidAuthority:      ErrInvalidAuthority,
	registry.CodeAuthorityAlreadySet:   ErrAuthorityAlreadySet,
	registry.CodeMaterialAlreadyExists: ErrMaterialAlreadyExists,
	registry.CodeMaterialNotFound:      ErrMaterialNotFound,
	registry.CodeAuthorityNotVerified:  ErrAuthorityNotVerified,
	registry.CodeInvalidDescription:    ErrInvalidDescription,
	registry.CodeInvalidCategory:       ErrInvalidCategory,
	registry.CodeMaxMaterialsExceeded:  ErrMaxMaterialsExceeded,
	registry.CodeInvalidLanguage:       ErrInvalidLanguage,
	registry.CodeInvalidFormat:         ErrInvalidFormat,
	registry.CodeCommitRejected:        ErrCommitRejected,
}

// CodedError is a stable error with a machine-readable code and a human message.
// Number carries the numeric registry code when there is one.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Number  uint32    `json:"number,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// FromError projects err onto a CodedError. Registry errors keep their code;
// everything else is INTERNAL.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	var re *registry.Error
	if errors.As(err, &re) {
		code, ok := registryCodes[re.Code]
		if !ok {
			code = ErrInternal
		}
		return &CodedError{Code: code, Number: uint32(re.Code), Message: re.Message}
	}
	return NewError(ErrInternal, err.Error())
}
