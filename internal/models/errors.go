package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Caller & state errors
	ErrInvalidInput  = errors.New("invalid input data")
	ErrInvalidState  = errors.New("operation not allowed in current state")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Generation provider errors
	ErrTransientProvider = errors.New("generation provider temporarily unavailable")
	ErrFatalProvider     = errors.New("generation provider failed")

	// Storage errors
	ErrPersistence = errors.New("persistence failure")

	// ErrStoryDefinitionInvalid оборачивает ErrFatalProvider: сломанное определение истории не лечится повтором.
	ErrStoryDefinitionInvalid = fmt.Errorf("%w: story definition is invalid", ErrFatalProvider)
)
