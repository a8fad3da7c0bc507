package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/observability"
)

// OutboundPublisher pushes settled envelopes back onto NATS so downstream
// consumers (notification services, analytics) can follow the event log
// without touching Postgres.
type OutboundPublisher struct {
	js      jetstream.JetStream
	metrics *observability.Metrics
	log     zerolog.Logger
}

// PublishableEvent is the JSON form of an envelope on the wire.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	MarketID       *uint64         `json:"market_id,omitempty"`
	TimestampUs    int64           `json:"timestamp_us"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	PrevHash       string          `json:"prev_hash"`
}

func NewOutboundPublisher(js jetstream.JetStream, metrics *observability.Metrics, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{js: js, metrics: metrics, log: log}
}

// EnsureOutboundStream creates the stream carrying published envelopes.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "AGORA_EVENTS",
		Subjects:  []string{"agora.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream AGORA_EVENTS: %w", err)
	}
	return nil
}

// Publish sends one envelope. Subject is agora.events.{type}.{market_id},
// with "global" in place of the market segment for platform-level events.
func (p *OutboundPublisher) Publish(ctx context.Context, env *event.Envelope) error {
	pe := PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		MarketID:       env.MarketID,
		TimestampUs:    env.Timestamp.UnixMicro(),
		Payload:        env.Payload,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		PrevHash:       hex.EncodeToString(env.PrevHash[:]),
	}

	data, err := json.Marshal(pe)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", env.Sequence, err)
	}

	marketSegment := "global"
	if env.MarketID != nil {
		marketSegment = fmt.Sprintf("%d", *env.MarketID)
	}
	subject := fmt.Sprintf("agora.events.%s.%s", strings.ToLower(env.EventType.String()), marketSegment)

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.metrics.PublishDrops.Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Run drains envelopes from the channel until it closes. Publish failures
// are logged and counted but never block the core.
func (p *OutboundPublisher) Run(ctx context.Context, events <-chan *event.Envelope) {
	p.log.Info().Msg("outbound publisher started")
	for env := range events {
		if err := p.Publish(ctx, env); err != nil {
			p.log.Warn().Err(err).Int64("sequence", env.Sequence).Msg("event publish failed")
		}
	}
	p.log.Info().Msg("outbound publisher stopped")
}
