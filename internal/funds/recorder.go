package funds

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Payment is one delivered push transfer
type Payment struct {
	To     uuid.UUID
	Amount int64
}

// Recorder is an in-process Transferrer that records every delivered
// payment. It backs single-node deployments where settlement money movement
// is downstream (the notification log is the source of truth) and doubles
// as the transfer fake in tests, including injected failures.
type Recorder struct {
	mu       sync.Mutex
	payments []Payment
	failFor  map[uuid.UUID]error
}

func NewRecorder() *Recorder {
	return &Recorder{
		failFor: make(map[uuid.UUID]error),
	}
}

// Transfer records the payment, or fails if a failure is injected for the
// recipient
func (r *Recorder) Transfer(_ context.Context, to uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cause, ok := r.failFor[to]; ok {
		return &TransferError{To: to, Amount: amount, Cause: cause}
	}

	r.payments = append(r.payments, Payment{To: to, Amount: amount})
	return nil
}

// FailFor injects a failure for every transfer to a recipient
func (r *Recorder) FailFor(to uuid.UUID, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[to] = cause
}

// ClearFailure removes an injected failure
func (r *Recorder) ClearFailure(to uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failFor, to)
}

// Payments returns a copy of all delivered payments
func (r *Recorder) Payments() []Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Payment, len(r.payments))
	copy(result, r.payments)
	return result
}

// TotalPaidTo sums delivered payments for one recipient
func (r *Recorder) TotalPaidTo(to uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, p := range r.payments {
		if p.To == to {
			total += p.Amount
		}
	}
	return total
}
