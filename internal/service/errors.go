package service

import (
	"errors"

	"github.com/Resinat/dohswitch/internal/probe"
	"github.com/Resinat/dohswitch/internal/provider"
	"github.com/Resinat/dohswitch/internal/state"
)

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, CONFLICT, FORBIDDEN, UNAVAILABLE, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg}
}

func conflict(msg string) *ServiceError {
	return &ServiceError{Code: "CONFLICT", Message: msg}
}

func forbidden(msg string) *ServiceError {
	return &ServiceError{Code: "FORBIDDEN", Message: msg}
}

func unavailable(msg string, err error) *ServiceError {
	return &ServiceError{Code: "UNAVAILABLE", Message: msg, Err: err}
}

func internal(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INTERNAL", Message: msg, Err: err}
}

// registryError maps provider registry errors onto service codes.
func registryError(op string, err error) *ServiceError {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return notFound("provider not found")
	case errors.Is(err, state.ErrConflict):
		return conflict("a provider with this url already exists")
	case errors.Is(err, provider.ErrProtected):
		return forbidden(err.Error())
	case errors.Is(err, provider.ErrInvalid):
		return invalidArg(err.Error())
	default:
		return internal(op, err)
	}
}

func domainError(err error) *ServiceError {
	if errors.Is(err, probe.ErrInvalidDomain) {
		return invalidArg(err.Error())
	}
	return internal("normalize domain", err)
}
