package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AgoraXchange/agora-contract/internal/config"
	"github.com/AgoraXchange/agora-contract/internal/core"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/funds"
	"github.com/AgoraXchange/agora-contract/internal/ingestion"
	"github.com/AgoraXchange/agora-contract/internal/observability"
	"github.com/AgoraXchange/agora-contract/internal/persistence"
	"github.com/AgoraXchange/agora-contract/internal/projection"
	"github.com/AgoraXchange/agora-contract/internal/query"
	"github.com/AgoraXchange/agora-contract/internal/server"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger("agorad")
	log.Info().Msg("agora starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime.Duration)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir, observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL, observability.NewLogger("nats"))
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Msg("nats connected")

	if err := ingestion.EnsureStreams(ctx, js, log); err != nil {
		log.Fatal().Err(err).Msg("ensure command streams")
	}
	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}
	if err := funds.EnsurePayoutStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure payout stream")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Recovery: snapshot + replay ---
	snapMgr := persistence.NewSnapshotManager(db)

	startSequence := int64(0)
	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot load failed, falling back to full replay")
	}

	var restored *core.SnapshotState
	if snap != nil {
		restored, err = persistence.DecodeSnapshot(snap)
		if err != nil {
			log.Fatal().Err(err).Msg("decode snapshot")
		}
		startSequence = restored.Sequence + 1
		log.Info().Int64("sequence", restored.Sequence).Msg("snapshot loaded")
	} else {
		log.Info().Msg("no snapshot found, cold start")
	}

	// --- Channels ---
	persistCoreChan := make(chan core.CoreOutput, cfg.Core.PersistChanSize)
	projectionCoreChan := make(chan core.CoreOutput, cfg.Core.ProjectionChanSize)
	persistWorkerChan := make(chan persistence.CoreOutput, cfg.Core.PersistChanSize)
	projectionWorkerChan := make(chan projection.ProjectionOutput, cfg.Core.ProjectionChanSize)
	publishChan := make(chan *event.Envelope, cfg.Core.PublishChanSize)
	rawCmdChan := make(chan ingestion.RawCommand, cfg.Core.RawCommandChanSize)
	snapshotReqChan := make(chan snapshotRequest)

	// --- Core ---
	transferrer := funds.NewNATSTransferrer(js)
	dbChecker := persistence.NewPostgresIdempotencyChecker(db)

	engine := core.NewBettingCore(
		cfg.OwnerID(), cfg.OracleID(),
		startSequence,
		cfg.Core.IdempotencyLRUCapacity,
		persistCoreChan, projectionCoreChan,
		dbChecker, transferrer, metrics,
	)

	if restored != nil {
		engine.RestoreFromSnapshot(restored)
		if len(restored.IdempotencyKeys) > 0 {
			engine.WarmLRU(restored.IdempotencyKeys)
		}
	}

	replayed, err := replayEvents(ctx, snapMgr, engine, startSequence, log)
	if err != nil {
		log.Fatal().Err(err).Msg("event replay")
	}
	if replayed > 0 {
		log.Info().Int64("events", replayed).Int64("sequence", engine.GetSequence()).Msg("replay complete")
	} else if restored != nil {
		// Snapshot was already at head; the restored hash is the chain tip.
		if engine.GetStateHash() != restored.StateHash {
			log.Fatal().Msg("state hash mismatch after snapshot restore")
		}
		log.Info().Msg("state hash verified after restore")
	}

	// --- Services ---
	queries := query.NewService(db, metrics)
	publisher := ingestion.NewOutboundPublisher(js, metrics, observability.NewLogger("publisher"))
	subscriber := ingestion.NewNATSSubscriber(js, rawCmdChan, observability.NewLogger("ingestion"))
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	httpServer := server.NewHTTPServer(cfg.Server.HTTPAddr, queries, rawCmdChan, healthChecker, observability.NewLogger("http"))
	grpcServer := server.NewGRPCServer(cfg.Server.GRPCAddr, observability.NewLogger("grpc"))

	// --- Workers ---
	g, gctx := errgroup.WithContext(ctx)

	persistWorker := persistence.NewWorker(db, persistWorkerChan, cfg.Core.PersistBatchSize, cfg.Core.PersistFlushTimeout.Duration, metrics, observability.NewLogger("persistence"))
	g.Go(func() error { return persistWorker.Run(gctx) })

	projWorker := projection.NewWorker(db, projectionWorkerChan, metrics, observability.NewLogger("projection"))
	g.Go(func() error { return projWorker.Run(gctx) })

	g.Go(func() error {
		publisher.Run(gctx, publishChan)
		return nil
	})

	g.Go(func() error {
		bridgeCoreOutputs(gctx, persistCoreChan, projectionCoreChan, persistWorkerChan, projectionWorkerChan, publishChan, metrics)
		return nil
	})

	g.Go(func() error {
		runCommandLoop(gctx, rawCmdChan, snapshotReqChan, engine, log)
		return nil
	})

	g.Go(func() error { return httpServer.Run(gctx) })
	g.Go(func() error { return grpcServer.Run(gctx) })

	g.Go(func() error {
		runPeriodicSnapshots(gctx, snapshotReqChan, snapMgr, cfg.Core.SnapshotInterval, engine.GetSequence(), metrics, log)
		return nil
	})

	g.Go(func() error {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
		go func() {
			<-gctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	healthChecker.SetReady(true)
	grpcServer.SetServing(true)
	log.Info().
		Int64("sequence", engine.GetSequence()).
		Str("http", cfg.Server.HTTPAddr).
		Str("grpc", cfg.Server.GRPCAddr).
		Msg("agora ready")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	healthChecker.SetReady(false)
	grpcServer.SetServing(false)

	subscriber.Stop()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("worker exited with error")
	}

	// Final snapshot so the next start needs no replay. The command loop has
	// exited, so reading the engine directly is safe here.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := takeSnapshot(shutdownCtx, engine.CreateSnapshotState(), snapMgr, metrics); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("shutdown complete")
}

// snapshotRequest asks the command loop for a state capture. The engine's
// state is only readable from the loop goroutine, so snapshots are serviced
// there rather than read concurrently. The reply is nil when the engine has
// not yet reached minSequence.
type snapshotRequest struct {
	minSequence int64
	reply       chan *core.SnapshotState
}

// runCommandLoop parses raw commands and feeds them to the core. Messages
// are acked once parsed; a core rejection is a final business outcome, not
// a reason to redeliver. Snapshot requests are serviced between commands so
// every capture sees a quiesced engine.
func runCommandLoop(ctx context.Context, rawChan <-chan ingestion.RawCommand, snapshotReq <-chan snapshotRequest, engine *core.BettingCore, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-snapshotReq:
			if engine.GetSequence() < req.minSequence {
				req.reply <- nil
				continue
			}
			req.reply <- engine.CreateSnapshotState()
		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			cmd, err := ingestion.ParseCommand(raw.Kind, raw.Data)
			if err != nil {
				log.Warn().Err(err).Str("subject", raw.Subject).Msg("unparseable command")
				raw.AckFunc()
				continue
			}
			raw.AckFunc()

			if err := engine.Process(ctx, cmd); err != nil {
				log.Debug().Err(err).Str("kind", raw.Kind).Str("key", cmd.IdempotencyKey()).Msg("command rejected")
			}
		}
	}
}

// bridgeCoreOutputs converts core.CoreOutput into the row shapes the
// persistence and projection workers consume, and tees envelopes to the
// outbound publisher.
func bridgeCoreOutputs(
	ctx context.Context,
	persistIn, projectionIn <-chan core.CoreOutput,
	persistOut chan<- persistence.CoreOutput,
	projectionOut chan<- projection.ProjectionOutput,
	publishOut chan<- *event.Envelope,
	metrics *observability.Metrics,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case output, ok := <-persistIn:
			if !ok {
				return
			}

			env := output.Envelope
			pOutput := persistence.CoreOutput{
				EventRow: persistence.EventRow{
					Sequence:       env.Sequence,
					EventType:      env.EventType.String(),
					IdempotencyKey: env.IdempotencyKey,
					MarketID:       marketIDValue(env.MarketID),
					Payload:        env.Payload,
					StateHash:      env.StateHash[:],
					PrevHash:       env.PrevHash[:],
					Timestamp:      env.Timestamp,
				},
			}

			if output.Batch != nil {
				for _, j := range output.Batch.Journals {
					pOutput.JournalRows = append(pOutput.JournalRows, persistence.JournalRow{
						JournalID:     j.JournalID.String(),
						BatchID:       j.BatchID.String(),
						EventRef:      j.EventRef,
						Sequence:      j.Sequence,
						DebitAccount:  j.DebitAccount.AccountPath(),
						CreditAccount: j.CreditAccount.AccountPath(),
						AssetID:       uint16(j.AssetID),
						Amount:        j.Amount,
						JournalType:   int32(j.JournalType),
						Timestamp:     j.Timestamp,
					})
				}
			}

			select {
			case persistOut <- pOutput:
			case <-ctx.Done():
				return
			}

			select {
			case publishOut <- env:
			default:
				metrics.PublishDrops.Inc()
			}

		case output, ok := <-projectionIn:
			if !ok {
				return
			}

			env := output.Envelope
			pOutput := projection.ProjectionOutput{
				Sequence:  env.Sequence,
				EventType: env.EventType,
				MarketID:  marketIDValue(env.MarketID),
				Payload:   env.Payload,
				Timestamp: env.Timestamp.UnixMicro(),
			}

			if output.Batch != nil {
				for _, j := range output.Batch.Journals {
					pOutput.JournalEntries = append(pOutput.JournalEntries, projection.JournalEntry{
						DebitAccount:  j.DebitAccount.AccountPath(),
						CreditAccount: j.CreditAccount.AccountPath(),
						AssetID:       uint16(j.AssetID),
						Amount:        j.Amount,
						JournalType:   int32(j.JournalType),
					})
				}
			}

			select {
			case projectionOut <- pOutput:
			default:
				metrics.ProjectionDrops.WithLabelValues("bridge").Inc()
			}
		}
	}
}

func marketIDValue(id *uint64) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

// replayEvents re-applies logged events past the snapshot sequence.
func replayEvents(
	ctx context.Context,
	snapMgr *persistence.SnapshotManager,
	engine *core.BettingCore,
	fromSequence int64,
	log zerolog.Logger,
) (int64, error) {
	const batchSize = 1000
	var total int64

	for {
		rows, err := snapMgr.LoadEventsFrom(ctx, fromSequence, batchSize)
		if err != nil {
			return total, fmt.Errorf("load events from %d: %w", fromSequence, err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		for _, row := range rows {
			eventType, ok := event.ParseEventType(row.EventType)
			if !ok {
				return total, fmt.Errorf("unknown event type %q at sequence %d", row.EventType, row.Sequence)
			}

			replay := core.ReplayRow{
				Sequence:        row.Sequence,
				EventType:       eventType,
				IdempotencyKey:  row.IdempotencyKey,
				Payload:         row.Payload,
				TimestampMicros: row.Timestamp.UnixMicro(),
			}
			copy(replay.StateHash[:], row.StateHash)
			copy(replay.PrevHash[:], row.PrevHash)

			if err := engine.ReplayEvent(replay); err != nil {
				return total, err
			}
			total++
		}

		fromSequence = rows[len(rows)-1].Sequence + 1
	}
}

// runPeriodicSnapshots persists the core state every snapshot interval.
// State captures go through the command loop; this goroutine only encodes
// and writes what comes back.
func runPeriodicSnapshots(
	ctx context.Context,
	snapshotReq chan<- snapshotRequest,
	snapMgr *persistence.SnapshotManager,
	interval int64,
	startSequence int64,
	metrics *observability.Metrics,
	log zerolog.Logger,
) {
	lastSnapshotSeq := startSequence
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req := snapshotRequest{
				minSequence: lastSnapshotSeq + interval,
				reply:       make(chan *core.SnapshotState, 1),
			}

			select {
			case snapshotReq <- req:
			case <-ctx.Done():
				return
			}

			var snap *core.SnapshotState
			select {
			case snap = <-req.reply:
			case <-ctx.Done():
				return
			}
			if snap == nil {
				continue
			}

			if err := takeSnapshot(ctx, snap, snapMgr, metrics); err != nil {
				log.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSnapshotSeq = snap.Sequence + 1
			log.Info().Int64("sequence", snap.Sequence).Msg("periodic snapshot saved")
		}
	}
}

func takeSnapshot(ctx context.Context, snap *core.SnapshotState, snapMgr *persistence.SnapshotManager, metrics *observability.Metrics) error {
	start := time.Now()

	snapData := persistence.EncodeSnapshot(snap)
	if err := snapMgr.SaveSnapshot(ctx, snapData); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	// Created from live state, so verified immediately.
	if err := snapMgr.MarkVerified(ctx, snapData.Sequence); err != nil {
		return fmt.Errorf("mark snapshot verified: %w", err)
	}

	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		metrics.SnapshotLastSeq.Set(float64(snapData.Sequence))
	}
	return nil
}
