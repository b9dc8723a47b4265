package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrNotFound          = errors.New("not found")
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrScoringFailure    = errors.New("scoring failure")

	// ErrEmbeddingOrIndexFailure marks a failed indexing batch; nothing is
	// guaranteed about chunks written before the failure.
	ErrEmbeddingOrIndexFailure = errors.New("embedding or index failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
