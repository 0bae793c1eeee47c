package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrForbidden          = errors.New("entity owned by another user")
	ErrChatQuotaExceeded  = errors.New("active chat limit reached")
	ErrTokenQuotaExceeded = errors.New("token quota exhausted")
	ErrGenerationFailed   = errors.New("completion stream failed")
	ErrChatBusy           = errors.New("chat has an exchange in flight")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
