package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid request")
	ErrAlreadyInProgress = errors.New("generation already in progress")
	ErrTransientStorage  = errors.New("transient storage failure")
	ErrStageFailed       = errors.New("mandatory stage failed")
	ErrProviderFailure   = errors.New("provider failure")
)
