// Package businessflow contains the admin and intake use cases around the orchestrator
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Operator errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Campaign errors
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCampaignUpdateMissing = errors.New("at least one field must be provided for update")
	ErrCampaignFileEmpty     = errors.New("campaign file is empty")

	// Contact and intake errors
	ErrContactNotFound    = errors.New("contact not found")
	ErrContactNotEnrolled = errors.New("contact is not enrolled in campaign")
	ErrInvalidSheet       = errors.New("contact sheet is invalid")

	// Paging errors
	ErrInvalidPage     = errors.New("page must be positive")
	ErrInvalidPageSize = errors.New("page size is out of range")
)

// BusinessError carries a stable code for the API next to the wrapped cause
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsContactNotEnrolled(err error) bool {
	return errors.Is(err, ErrContactNotEnrolled)
}
