package funds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// PayoutInstruction is the durable record handed to the payment rail.
// Downstream executors consume the payout stream and move real value;
// the engine treats a stream ack as delivery.
type PayoutInstruction struct {
	TransferID  string `json:"transfer_id"`
	To          string `json:"to"`
	Amount      int64  `json:"amount"`
	Asset       string `json:"asset"`
	RequestedAt int64  `json:"requested_at_us"`
}

// NATSTransferrer publishes payout instructions to JetStream. Publish waits
// for the stream ack, so a nil return means the instruction is durably
// queued; a failed publish means nothing was queued.
type NATSTransferrer struct {
	js      jetstream.JetStream
	timeout time.Duration
}

func NewNATSTransferrer(js jetstream.JetStream) *NATSTransferrer {
	return &NATSTransferrer{js: js, timeout: 5 * time.Second}
}

// EnsurePayoutStream creates the stream carrying payout instructions.
// WorkQueue retention: each instruction is consumed exactly once by the
// payment executor.
func EnsurePayoutStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "AGORA_PAYOUTS",
		Subjects:  []string{"agora.payouts.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream AGORA_PAYOUTS: %w", err)
	}
	return nil
}

func (t *NATSTransferrer) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	instruction := PayoutInstruction{
		TransferID:  uuid.New().String(),
		To:          to.String(),
		Amount:      amount,
		Asset:       "USDT",
		RequestedAt: time.Now().UnixMicro(),
	}

	data, err := json.Marshal(instruction)
	if err != nil {
		return &TransferError{To: to, Amount: amount, Cause: err}
	}

	pubCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	subject := fmt.Sprintf("agora.payouts.%s", to)
	if _, err := t.js.Publish(pubCtx, subject, data); err != nil {
		return &TransferError{To: to, Amount: amount, Cause: err}
	}
	return nil
}
