// Package funds abstracts the value-transfer primitive. Push transfers can
// fail; the core must surface such failures as decodable errors and roll
// back the operation that triggered them.
package funds

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Transferrer pushes escrowed value to a recipient identity. Implementations
// must make each transfer atomic: either the full amount is delivered or the
// returned error guarantees nothing moved.
type Transferrer interface {
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}

// TransferError wraps an outbound transfer failure so callers can
// distinguish it from validation failures
type TransferError struct {
	To     uuid.UUID
	Amount int64
	Cause  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %d to %s failed: %v", e.Amount, e.To, e.Cause)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}
