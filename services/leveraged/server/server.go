package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/gateway/middleware"
	"leverageloop/native/devnet"
	"leverageloop/native/leverage"
	"leverageloop/observability/logging"
	"leverageloop/services/leveraged/config"
	"leverageloop/services/leveraged/storage"
)

// DepositScope is the token scope required on POST /v1/deposit.
const DepositScope = "leverage:deposit"

// Config captures the dependencies required to construct the server.
type Config struct {
	Devnet   *devnet.Devnet
	Receipts *storage.Store
	Logger   *slog.Logger
	Settings config.Config
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Server exposes the leverage controller over HTTP.
type Server struct {
	devnet   *devnet.Devnet
	receipts *storage.Store
	logger   *slog.Logger
	faucet   bool

	obs    *middleware.Observability
	router http.Handler

	cycles metric.Int64Counter
	loops  metric.Int64Histogram
}

// New wires the routes and middleware.
func New(cfg Config) (*Server, error) {
	if cfg.Devnet == nil {
		return nil, fmt.Errorf("server: devnet required")
	}
	if cfg.Receipts == nil {
		return nil, fmt.Errorf("server: receipts store required")
	}
	logger := logging.Component(cfg.Logger, "server")
	srv := &Server{
		devnet:   cfg.Devnet,
		receipts: cfg.Receipts,
		logger:   logger,
		faucet:   cfg.Settings.Faucet.Enabled,
		obs:      middleware.NewObservability(cfg.Settings.Observability, logger),
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("leverageloop/services/leveraged")
	}
	var err error
	if srv.cycles, err = meter.Int64Counter("leveraged.cycles",
		metric.WithDescription("Deposit cycles executed, by outcome.")); err != nil {
		return nil, fmt.Errorf("server: cycles counter: %w", err)
	}
	if srv.loops, err = meter.Int64Histogram("leveraged.cycle_loops",
		metric.WithDescription("Borrow/swap iterations per committed cycle.")); err != nil {
		return nil, fmt.Errorf("server: loops histogram: %w", err)
	}
	srv.router = srv.buildRouter(cfg.Settings)
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(settings config.Config) http.Handler {
	limiter := middleware.NewRateLimiter(settings.RateLimits, s.logger)
	auth := middleware.NewAuthenticator(settings.Auth, s.logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(settings.CORS))

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(api chi.Router) {
		api.With(
			s.obs.Middleware("deposit"),
			limiter.Middleware(config.RouteDeposit),
			auth.Middleware(DepositScope),
		).Post("/deposit", s.Deposit)

		api.Group(func(q chi.Router) {
			q.Use(limiter.Middleware(config.RouteQueries))
			q.With(s.obs.Middleware("possible_borrow")).Get("/possible-borrow/{address}", s.PossibleBorrow)
			q.With(s.obs.Middleware("collateral")).Get("/collateral/{address}", s.Collateral)
			q.With(s.obs.Middleware("config")).Get("/config", s.Config)
			q.With(s.obs.Middleware("estimate_bond")).Get("/estimate-bond", s.EstimateBond)
			q.With(s.obs.Middleware("receipt")).Get("/receipts/{id}", s.Receipt)
			q.With(s.obs.Middleware("account_receipts")).Get("/accounts/{address}/receipts", s.AccountReceipts)
		})
	})
	return r
}

type depositRequest struct {
	Sender string `json:"sender"`
	Amount string `json:"amount"`
}

type depositResponse struct {
	ReceiptID uuid.UUID           `json:"receipt_id"`
	Result    *devnet.CycleResult `json:"result"`
}

type errorResponse struct {
	Error     string     `json:"error"`
	Detail    string     `json:"detail,omitempty"`
	ReceiptID *uuid.UUID `json:"receipt_id,omitempty"`
}

// Deposit runs one leverage cycle for the sender and stores its receipt. A
// bearer subject, when present, must match the sender.
func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errInvalidRequest, err), nil)
		return
	}
	subject := middleware.Subject(r.Context())
	if strings.TrimSpace(req.Sender) == "" {
		req.Sender = subject
	}
	sender, err := parseAddress(req.Sender)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if subject != "" && subject != sender.String() {
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "sender does not match token subject"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	if s.faucet {
		if err := s.devnet.Fund(sender, types.NewCoin(leverage.AcceptedDenom, amount)); err != nil {
			s.writeError(w, err, nil)
			return
		}
	}
	result, cycleErr := s.devnet.Cycle(r.Context(), sender, amount)
	if result == nil || result.Receipt == nil {
		s.writeError(w, cycleErr, nil)
		return
	}
	s.recordCycle(r.Context(), result, cycleErr)
	rec, err := s.receipts.Record(r.Context(), sender.String(), amount.Dec(), result, cycleErr)
	if err != nil {
		s.logger.Error("store receipt failed",
			slog.String("tx", result.Receipt.Hash),
			slog.String("error", err.Error()))
		s.writeError(w, err, nil)
		return
	}
	if cycleErr != nil {
		s.writeError(w, cycleErr, &rec.ID)
		return
	}
	s.writeJSON(w, http.StatusOK, depositResponse{ReceiptID: rec.ID, Result: result})
}

func (s *Server) recordCycle(ctx context.Context, result *devnet.CycleResult, cycleErr error) {
	outcome := "committed"
	if cycleErr != nil {
		outcome = "reverted"
	}
	s.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if cycleErr == nil {
		s.loops.Record(ctx, int64(result.Loops))
	}
}

// PossibleBorrow reports the remaining borrow capacity of an account,
// optionally at block_time and block_height.
func (s *Server) PossibleBorrow(w http.ResponseWriter, r *http.Request) {
	target, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	query := &leverage.PossibleBorrowQuery{Target: target}
	if query.BlockTime, err = optionalUint(r, "block_time"); err != nil {
		s.writeError(w, err, nil)
		return
	}
	if query.BlockHeight, err = optionalUint(r, "block_height"); err != nil {
		s.writeError(w, err, nil)
		return
	}
	var out leverage.PossibleBorrowResponse
	if err := s.devnet.QueryLeverage(r.Context(), leverage.QueryMsg{PossibleBorrow: query}, &out); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Collateral returns the custody snapshot of an account.
func (s *Server) Collateral(w http.ResponseWriter, r *http.Request) {
	target, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	var out leverage.CollateralResponse
	if err := s.devnet.QueryLeverage(r.Context(), leverage.QueryMsg{Collateral: &leverage.CollateralQuery{Target: target}}, &out); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Config returns the stored controller configuration.
func (s *Server) Config(w http.ResponseWriter, r *http.Request) {
	var out leverage.ConfigResponse
	if err := s.devnet.QueryLeverage(r.Context(), leverage.QueryMsg{Config: &leverage.ConfigQuery{}}, &out); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// EstimateBond reports the derivative units bonding ?amount= would mint.
func (s *Server) EstimateBond(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	var out leverage.EstimateBondResponse
	if err := s.devnet.QueryLeverage(r.Context(), leverage.QueryMsg{EstimateBond: &leverage.EstimateBondQuery{Amount: amount}}, &out); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Receipt returns a stored deposit receipt with its call trace.
func (s *Server) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: receipt id: %v", errInvalidRequest, err), nil)
		return
	}
	rec, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(receiptView(rec, true))
}

// AccountReceipts lists the newest receipts of an account.
func (s *Server) AccountReceipts(w http.ResponseWriter, r *http.Request) {
	sender, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a positive integer", errInvalidRequest), nil)
			return
		}
	}
	recs, err := s.receipts.ListBySender(r.Context(), sender.String(), limit)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	out := make([]receiptJSON, 0, len(recs))
	for i := range recs {
		out = append(out, receiptView(&recs[i], false))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Health reports the current block.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	block := s.devnet.Ledger.Block()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"height": block.Height,
		"time":   block.Time,
	})
}

type receiptJSON struct {
	ID         uuid.UUID       `json:"id"`
	TxHash     string          `json:"tx_hash"`
	Height     uint64          `json:"height"`
	Sender     string          `json:"sender"`
	Amount     string          `json:"amount"`
	Calls      int             `json:"calls"`
	Loops      int             `json:"loops"`
	Redeposits int             `json:"redeposits"`
	Phase      string          `json:"phase,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	Reverted   bool            `json:"reverted"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  string          `json:"created_at"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func receiptView(rec *storage.Receipt, withPayload bool) receiptJSON {
	out := receiptJSON{
		ID:         rec.ID,
		TxHash:     rec.TxHash,
		Height:     rec.Height,
		Sender:     rec.Sender,
		Amount:     rec.Amount,
		Calls:      rec.Calls,
		Loops:      rec.Loops,
		Redeposits: rec.Redeposits,
		Phase:      rec.Phase,
		StopReason: rec.StopReason,
		Reverted:   rec.Reverted,
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if withPayload && len(rec.Payload) > 0 {
		out.Result = json.RawMessage(rec.Payload)
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error, receiptID *uuid.UUID) {
	code, msg := toStatus(err)
	resp := errorResponse{Error: msg, ReceiptID: receiptID}
	if code < http.StatusInternalServerError {
		resp.Detail = err.Error()
	} else {
		s.logger.Error("request failed", slog.String("error", err.Error()))
	}
	s.writeJSON(w, code, resp)
}

func parseAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: address %q: %v", errInvalidRequest, raw, err)
	}
	if addr.Prefix() != crypto.AccountPrefix {
		return crypto.Address{}, fmt.Errorf("%w: address %s must use prefix %s", errInvalidRequest, addr, crypto.AccountPrefix)
	}
	return addr, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", errInvalidRequest, raw, err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", errInvalidRequest)
	}
	return amount, nil
}

func optionalUint(r *http.Request, name string) (*uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidRequest, name, err)
	}
	return &v, nil
}
