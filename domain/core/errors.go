package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors are fatal and never retried.
	ErrConfiguration           = errors.New("configuration error")
	ErrNoDocuments             = fmt.Errorf("%w: no interview or context documents supplied", ErrConfiguration)
	ErrDimensionMismatch       = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)
	ErrInvalidGenerationConfig = fmt.Errorf("%w: invalid generation config", ErrConfiguration)

	// Gateway errors. A transient failure is retried with bounded backoff at
	// the gateway layer; when retries exhaust it escalates to permanent.
	ErrGatewayTransient  = errors.New("transient gateway failure")
	ErrGatewayPermanent  = errors.New("permanent gateway failure")
	ErrEmbeddingFailure  = fmt.Errorf("%w: embedding", ErrGatewayPermanent)
	ErrGenerationFailure = fmt.Errorf("%w: generation", ErrGatewayPermanent)
	ErrRetrievalFailure  = fmt.Errorf("%w: retrieval", ErrGatewayPermanent)

	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrPersonaNotFound    = fmt.Errorf("%w: persona", ErrNotFound)
	ErrPersonaSetNotFound = fmt.Errorf("%w: persona set", ErrNotFound)
)

// NewConfigurationError creates a configuration error with context
func NewConfigurationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, detail)
}

// NewDimensionMismatchError reports an index/model embedding width conflict
func NewDimensionMismatchError(indexDim, modelDim int) error {
	return fmt.Errorf("%w: index has %d, model produces %d", ErrDimensionMismatch, indexDim, modelDim)
}

// NewTransientError wraps a vendor error as retryable
func NewTransientError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrGatewayTransient, op, err)
}

// NewPermanentError wraps a vendor error as non-retryable
func NewPermanentError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrGatewayPermanent, op, err)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsTransientError(err error) bool {
	return errors.Is(err, ErrGatewayTransient)
}

func IsPermanentError(err error) bool {
	return errors.Is(err, ErrGatewayPermanent)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
