package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the credential cannot be refreshed and the user must reconnect.
	ErrAuthExpired = errors.New("calendar authorization expired, reconnect required")
	// ErrNotFoundLocal means a referenced local record does not exist.
	ErrNotFoundLocal = errors.New("record not found")
	// ErrEventNotFound is returned by the gateway when the provider has no such event.
	ErrEventNotFound = errors.New("calendar event not found")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requireID(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ProviderError is a non-2xx answer (or transport failure, Status 0) from the calendar provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("calendar provider unreachable: %s", e.Body)
	}
	return fmt.Sprintf("calendar provider returned %d: %s", e.Status, e.Body)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}
