package domain

import "errors"

// Engine errors
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = errors.New("resource not found")
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrAlreadyResolved         = errors.New("complaint already resolved")
	ErrInconsistentState       = errors.New("inconsistent state")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// Entity specific not-found errors, all matching ErrNotFound
var (
	ErrTransactionNotFound = &notFoundError{what: "transaction"}
	ErrComplaintNotFound   = &notFoundError{what: "complaint"}
)

type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string { return e.what + " not found" }

func (e *notFoundError) Unwrap() error { return ErrNotFound }
