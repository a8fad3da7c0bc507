package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw
// commands into the processing shell. JetStream is the primary
// high-throughput ingestion surface; the HTTP server is the secondary one.
type NATSSubscriber struct {
	js        jetstream.JetStream
	cmdChan   chan<- RawCommand
	consumers []jetstream.ConsumeContext
	log       zerolog.Logger
}

// RawCommand is a parsed-but-untyped command from NATS, ready for the shell
// to validate and convert into a typed command.Command before sending to
// the core.
type RawCommand struct {
	Subject   string
	Kind      string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to command kinds.
type SubjectConfig struct {
	Subject      string
	CommandKind  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Market, bet
// and admin commands live on separate streams so they scale independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "agora.cmd.market.create.>", CommandKind: "CreateMarket", ConsumerName: "agora-market-create", StreamName: "AGORA_MARKET"},
		{Subject: "agora.cmd.market.close.>", CommandKind: "CloseBetting", ConsumerName: "agora-market-close", StreamName: "AGORA_MARKET"},
		{Subject: "agora.cmd.market.declare.>", CommandKind: "DeclareWinner", ConsumerName: "agora-market-declare", StreamName: "AGORA_MARKET"},
		{Subject: "agora.cmd.market.distribute.>", CommandKind: "DistributeRewards", ConsumerName: "agora-market-distribute", StreamName: "AGORA_MARKET"},
		{Subject: "agora.cmd.market.cancel.>", CommandKind: "CancelMarket", ConsumerName: "agora-market-cancel", StreamName: "AGORA_MARKET"},
		{Subject: "agora.cmd.bet.commit.>", CommandKind: "CommitBet", ConsumerName: "agora-bet-commit", StreamName: "AGORA_BETS"},
		{Subject: "agora.cmd.bet.reveal.>", CommandKind: "RevealBet", ConsumerName: "agora-bet-reveal", StreamName: "AGORA_BETS"},
		{Subject: "agora.cmd.bet.cancel.>", CommandKind: "CancelBet", ConsumerName: "agora-bet-cancel", StreamName: "AGORA_BETS"},
		{Subject: "agora.cmd.bet.refund.>", CommandKind: "RefundBet", ConsumerName: "agora-bet-refund", StreamName: "AGORA_BETS"},
		{Subject: "agora.cmd.bet.claim.>", CommandKind: "ClaimReward", ConsumerName: "agora-bet-claim", StreamName: "AGORA_BETS"},
		{Subject: "agora.cmd.admin.set_fee.>", CommandKind: "SetPlatformFee", ConsumerName: "agora-admin-set-fee", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.set_fee_recipient.>", CommandKind: "SetFeeRecipient", ConsumerName: "agora-admin-set-recipient", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.set_bet_limits.>", CommandKind: "SetDefaultBetLimits", ConsumerName: "agora-admin-set-limits", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.set_oracle.>", CommandKind: "SetOracle", ConsumerName: "agora-admin-set-oracle", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.transfer_ownership.>", CommandKind: "TransferOwnership", ConsumerName: "agora-admin-transfer", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.pause.>", CommandKind: "Pause", ConsumerName: "agora-admin-pause", StreamName: "AGORA_ADMIN"},
		{Subject: "agora.cmd.admin.unpause.>", CommandKind: "Unpause", ConsumerName: "agora-admin-unpause", StreamName: "AGORA_ADMIN"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, cmdChan chan<- RawCommand, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		cmdChan: cmdChan,
		log:     log,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		cfg := cfg
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:   msg.Subject(),
				Kind:      cfg.CommandKind,
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.cmdChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "AGORA_MARKET",
			Subjects:  []string{"agora.cmd.market.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AGORA_BETS",
			Subjects:  []string{"agora.cmd.bet.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AGORA_ADMIN",
			Subjects:  []string{"agora.cmd.admin.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.log.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
