package engine

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced by the engine. Handlers translate these into
// HTTP status codes; nothing is retried internally.
var (
	// ErrNotFound: a referenced template, purchase, or line does not exist
	// or does not belong to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the operation is not permitted in the purchase's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation: malformed input caught before any write.
	ErrValidation = errors.New("validation failed")
)

// MissingPriceError rejects a finish request while checked lines lack a unit
// price. The purchase is left untouched; the caller fixes the data and
// retries.
type MissingPriceError struct {
	LineIDs []int64
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("checked lines missing unit price: %v", e.LineIDs)
}
