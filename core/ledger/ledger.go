package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leverageloop/core/events"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/observability"
	telemetry "leverageloop/observability/otel"
	"leverageloop/storage"
)

var (
	ErrUnknownContract   = errors.New("ledger: unknown contract")
	ErrContractExists    = errors.New("ledger: contract already registered")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrCallLimit         = errors.New("ledger: call limit exceeded")
	ErrDepthLimit        = errors.New("ledger: call depth limit exceeded")
	ErrInvalidCall       = errors.New("ledger: invalid call")
	ErrReadOnly          = errors.New("ledger: store is read-only")
	ErrEmptyKey          = errors.New("ledger: empty key")
)

var blockKey = []byte("ledger/block")

type entryPoint int

const (
	entryExecute entryPoint = iota
	entryInstantiate
)

type registration struct {
	label    string
	address  crypto.Address
	contract Contract
}

type blockRecord struct {
	Height uint64
	Time   uint64
}

// Ledger is the ordered-delivery scheduler contracts run on. Transactions are
// serialized; each one executes against a private cache and either commits
// every change in one batch or none at all.
type Ledger struct {
	mu        sync.RWMutex
	db        storage.Database
	params    Params
	contracts map[string]*registration
	block     types.BlockInfo

	logger  *slog.Logger
	emitter events.Emitter
	metrics *observability.LedgerMetricsRecorder
	tracer  trace.Tracer
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithParams overrides the default chain parameters.
func WithParams(p Params) Option {
	return func(l *Ledger) { l.params = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) {
		if emitter != nil {
			l.emitter = emitter
		}
	}
}

// New opens a ledger over db, resuming the block height persisted by a
// previous run.
func New(db storage.Database, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	l := &Ledger{
		db:        db,
		params:    DefaultParams(),
		contracts: make(map[string]*registration),
		logger:    slog.Default(),
		emitter:   events.NoopEmitter{},
		metrics:   observability.LedgerMetrics(),
		tracer:    telemetry.Tracer("leverageloop/core/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.params.normalize(); err != nil {
		return nil, err
	}
	l.block = types.BlockInfo{
		Height:  1,
		Time:    uint64(l.params.GenesisTime.Unix()),
		ChainID: l.params.ChainID,
	}
	data, err := db.Get(blockKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("ledger: load block: %w", err)
	default:
		var rec blockRecord
		if err := rlp.DecodeBytes(data, &rec); err != nil {
			return nil, fmt.Errorf("ledger: decode block: %w", err)
		}
		l.block.Height = rec.Height
		l.block.Time = rec.Time
	}
	return l, nil
}

// Params returns the chain parameters in effect.
func (l *Ledger) Params() Params {
	return l.params
}

// Block returns the block the next transaction will execute in.
func (l *Ledger) Block() types.BlockInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.block
}

// Register binds contract code to the deterministic address derived from label.
func (l *Ledger) Register(label string, contract Contract) (crypto.Address, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return crypto.Address{}, fmt.Errorf("ledger: contract label required")
	}
	if contract == nil {
		return crypto.Address{}, fmt.Errorf("ledger: contract %s: nil code", label)
	}
	addr := crypto.ContractAddress(label)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.contracts[addr.String()]; exists {
		return crypto.Address{}, fmt.Errorf("%w: %s", ErrContractExists, label)
	}
	l.contracts[addr.String()] = &registration{label: label, address: addr, contract: contract}
	return addr, nil
}

// Label returns the registration label of a contract address.
func (l *Ledger) Label(addr crypto.Address) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	reg, ok := l.contracts[addr.String()]
	if !ok {
		return "", false
	}
	return reg.label, true
}

// Instantiate runs the instantiate entry point of a registered contract as a
// transaction.
func (l *Ledger) Instantiate(ctx context.Context, sender, contract crypto.Address, msg []byte, funds types.Coins) (*Receipt, error) {
	return l.run(ctx, entryInstantiate, sender, contract, msg, funds)
}

// Execute runs msg against contract as a transaction sent by sender. On failure
// the returned receipt is marked reverted and no state change survives.
func (l *Ledger) Execute(ctx context.Context, sender, contract crypto.Address, msg []byte, funds types.Coins) (*Receipt, error) {
	return l.run(ctx, entryExecute, sender, contract, msg, funds)
}

// Query runs a read-only query against committed state.
func (l *Ledger) Query(ctx context.Context, contract crypto.Address, msg []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q := &querier{ledger: l, store: newCacheStore(l.db), block: l.block}
	return q.QuerySmart(ctx, contract, msg)
}

// Balance returns the committed native balance of addr.
func (l *Ledger) Balance(addr crypto.Address, denom string) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return bank{store: newCacheStore(l.db), params: l.params}.balance(addr, denom)
}

// Mint credits genesis coins without tax.
func (l *Ledger) Mint(addr crypto.Address, coins ...types.Coin) error {
	if err := types.Coins(coins).Validate(); err != nil {
		return fmt.Errorf("ledger: mint: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cache := newCacheStore(l.db)
	b := bank{store: cache, params: l.params}
	for _, coin := range coins {
		if err := b.credit(addr, coin); err != nil {
			return fmt.Errorf("ledger: mint: %w", err)
		}
	}
	return cache.commit()
}

func (l *Ledger) run(ctx context.Context, entry entryPoint, sender, contract crypto.Address, msg []byte, funds types.Coins) (*Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	action := types.MessageName(msg)
	if entry == entryInstantiate {
		action = "instantiate"
	}
	ctx, span := l.tracer.Start(ctx, "ledger.transaction", trace.WithAttributes(
		attribute.String("ledger.sender", sender.String()),
		attribute.String("ledger.contract", contract.String()),
		attribute.String("ledger.action", action),
		attribute.Int64("ledger.height", int64(l.block.Height)),
	))
	defer span.End()

	receipt := &Receipt{
		Hash:     txHash(l.params.ChainID, l.block.Height, sender, contract, msg),
		Height:   l.block.Height,
		Time:     l.block.Time,
		Sender:   sender,
		Contract: contract,
		Action:   action,
	}
	tx := &transaction{
		ledger: l,
		cache:  newCacheStore(l.db),
		block:  l.block,
		logger: l.logger.With(slog.String("tx", receipt.Hash), slog.Uint64("height", l.block.Height)),
	}
	entryCall := types.Call{Execute: &types.ExecuteCall{Contract: contract, Msg: msg, Funds: funds.Clone()}}
	data, err := tx.deliver(ctx, sender, entryCall, 0, entry)
	receipt.Trace = tx.trace
	next := l.nextBlock()

	if err != nil {
		receipt.Reverted = true
		receipt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverted")
		l.metrics.RecordTransaction(action, "reverted", len(tx.trace), time.Since(start))
		tx.logger.Warn("transaction reverted",
			slog.String("action", action),
			slog.Int("calls", len(tx.trace)),
			slog.String("error", err.Error()))
		if perr := l.persistBlock(next); perr != nil {
			return receipt, errors.Join(err, perr)
		}
		return receipt, err
	}

	encoded, err := rlp.EncodeToBytes(blockRecord{Height: next.Height, Time: next.Time})
	if err != nil {
		return receipt, fmt.Errorf("ledger: encode block: %w", err)
	}
	if err := tx.cache.Set(blockKey, encoded); err != nil {
		return receipt, err
	}
	if err := tx.cache.commit(); err != nil {
		span.RecordError(err)
		return receipt, fmt.Errorf("ledger: commit: %w", err)
	}
	l.block = next
	receipt.Events = tx.events
	receipt.Data = data
	l.metrics.RecordTransaction(action, "committed", len(tx.trace), time.Since(start))
	eventMetrics := observability.Events()
	for _, e := range tx.events {
		eventMetrics.RecordEvent(e.Type)
		l.emitter.Emit(e)
	}
	span.SetAttributes(attribute.Int("ledger.calls", len(tx.trace)))
	tx.logger.Debug("transaction committed", slog.String("action", action), slog.Int("calls", len(tx.trace)))
	return receipt, nil
}

func (l *Ledger) nextBlock() types.BlockInfo {
	next := l.block
	next.Height++
	next.Time += uint64(l.params.BlockInterval / time.Second)
	return next
}

func (l *Ledger) persistBlock(next types.BlockInfo) error {
	encoded, err := rlp.EncodeToBytes(blockRecord{Height: next.Height, Time: next.Time})
	if err != nil {
		return err
	}
	if err := l.db.Put(blockKey, encoded); err != nil {
		return fmt.Errorf("ledger: persist block: %w", err)
	}
	l.block = next
	return nil
}

func contractPrefix(addr crypto.Address) string {
	return "contract/" + addr.String() + "/"
}
