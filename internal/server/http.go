package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/AgoraXchange/agora-contract/internal/ingestion"
	"github.com/AgoraXchange/agora-contract/internal/observability"
	"github.com/AgoraXchange/agora-contract/internal/query"
)

// HTTPServer exposes the read API over the projections plus a direct
// command submission endpoint. High-volume producers should prefer NATS;
// this surface exists for tooling, dashboards and curl.
type HTTPServer struct {
	server        *http.Server
	queries       *query.Service
	cmdChan       chan<- ingestion.RawCommand
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

func NewHTTPServer(addr string, queries *query.Service, cmdChan chan<- ingestion.RawCommand, healthChecker *observability.HealthChecker, log zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		queries:       queries,
		cmdChan:       cmdChan,
		healthChecker: healthChecker,
		log:           log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/markets", s.handleListMarkets)
	mux.HandleFunc("GET /v1/markets/{id}", s.handleGetMarket)
	mux.HandleFunc("GET /v1/markets/{id}/betting", s.handleGetMarketBetting)
	mux.HandleFunc("GET /v1/markets/{id}/stats", s.handleGetMarketStats)
	mux.HandleFunc("GET /v1/markets/{id}/settlement", s.handleGetSettlement)
	mux.HandleFunc("GET /v1/markets/{id}/bets", s.handleGetUserBets)
	mux.HandleFunc("GET /v1/markets/{id}/journal", s.handleGetJournalHistory)
	mux.HandleFunc("GET /v1/balances/{path...}", s.handleGetBalance)
	mux.HandleFunc("GET /v1/platform/stats", s.handleGetPlatformStats)
	mux.HandleFunc("POST /v1/commands/{kind}", s.handleSubmitCommand)
	mux.HandleFunc("POST /v1/commitment", s.handleComputeCommitment)
	mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled (blocking).
func (s *HTTPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	var status *int32
	if v := r.URL.Query().Get("status"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		st := int32(n)
		status = &st
	}
	offset, limit := pagination(r)

	markets, err := s.queries.ListMarkets(r.Context(), status, offset, limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"markets": markets})
}

func (s *HTTPServer) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	market, err := s.queries.GetMarket(r.Context(), marketID)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *HTTPServer) handleGetMarketBetting(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	view, err := s.queries.GetMarketBetting(r.Context(), marketID)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleGetMarketStats(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	stats, err := s.queries.GetMarketStats(r.Context(), marketID)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	settlement, err := s.queries.GetSettlement(r.Context(), marketID)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

func (s *HTTPServer) handleGetUserBets(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	bettorRaw := r.URL.Query().Get("bettor")
	if bettorRaw == "" {
		writeError(w, http.StatusBadRequest, "bettor is required")
		return
	}
	bettor, err := uuid.Parse(bettorRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bettor")
		return
	}
	offset, limit := pagination(r)

	page, err := s.queries.GetUserBets(r.Context(), marketID, bettor, offset, limit)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleGetJournalHistory(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	_, limit := pagination(r)

	var after *int64
	if v := r.URL.Query().Get("after_sequence"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_sequence")
			return
		}
		after = &n
	}

	entries, err := s.queries.GetJournalHistory(r.Context(), marketID, limit, after)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journal": entries})
}

func (s *HTTPServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "account path is required")
		return
	}
	// Path segments use "/" over HTTP but ":" internally.
	accountPath := strings.ReplaceAll(path, "/", ":")

	balance, err := s.queries.GetBalance(r.Context(), accountPath)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *HTTPServer) handleGetPlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.GetPlatformStats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSubmitCommand accepts a JSON command body and queues it for the
// core. The response is 202: processing is asynchronous and the outcome
// lands in the event log, not this HTTP response.
func (s *HTTPServer) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")

	body := make([]byte, 0, 1024)
	buf := make([]byte, 4096)
	for {
		n, err := r.Body.Read(buf)
		body = append(body, buf[:n]...)
		if err != nil {
			break
		}
		if len(body) > 1<<20 {
			writeError(w, http.StatusRequestEntityTooLarge, "command body too large")
			return
		}
	}

	// Parse eagerly so malformed commands fail here instead of in the core loop.
	if _, err := ingestion.ParseCommand(kind, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw := ingestion.RawCommand{
		Subject:   "http",
		Kind:      kind,
		Data:      body,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}

	select {
	case s.cmdChan <- raw:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	}
}

type commitmentRequest struct {
	MarketID uint64 `json:"market_id"`
	Bettor   string `json:"bettor"`
	Choice   uint8  `json:"choice"`
	Nonce    uint64 `json:"nonce"`
	Amount   int64  `json:"amount"`
}

// handleComputeCommitment is a convenience for clients that cannot compute
// the commitment hash locally. The request carries the secret choice and
// nonce, so it should only be used over trusted transport.
func (s *HTTPServer) handleComputeCommitment(w http.ResponseWriter, r *http.Request) {
	var req commitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	bettor, err := uuid.Parse(req.Bettor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bettor")
		return
	}
	if req.Choice != 1 && req.Choice != 2 {
		writeError(w, http.StatusBadRequest, "choice must be 1 or 2")
		return
	}

	hash := commitment.Compute(req.MarketID, bettor, req.Choice, req.Nonce, req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"commitment": hash.String()})
}

func (s *HTTPServer) queryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, query.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.internalError(w, r, err)
}

func (s *HTTPServer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func marketIDFromPath(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (offset, limit int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
