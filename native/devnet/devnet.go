package devnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"leverageloop/config"
	"leverageloop/core/events"
	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
	"leverageloop/native/hub"
	"leverageloop/native/leverage"
	"leverageloop/native/moneymarket"
	"leverageloop/native/pair"
	"leverageloop/storage"
)

// Admin instantiates every devnet contract and owns the admin-only knobs
// (exchange rate, collateral price).
var Admin = crypto.AccountAddress(crypto.AccountPrefix, "devnet-admin")

var ErrAddressMismatch = errors.New("devnet: deployment record does not match derived address")

// Devnet is a ledger with the staking hub, money market, swap pair and
// leverage controller deployed.
type Devnet struct {
	Ledger   *ledger.Ledger
	Config   leverage.Config
	Leverage crypto.Address
	Engine   *leverage.Engine
	Pauses   *nativecommon.Pauses

	logger *slog.Logger
}

type options struct {
	logger  *slog.Logger
	emitter events.Emitter
}

// Option customises Deploy.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithEmitter(emitter events.Emitter) Option {
	return func(o *options) { o.emitter = emitter }
}

// Deploy registers the contracts on a ledger backed by db and, unless db
// already holds an instantiated deployment, instantiates them from the
// genesis section of record.
func Deploy(ctx context.Context, db storage.Database, record *config.Config, opts ...Option) (*Devnet, error) {
	if record == nil {
		record = config.Default()
	}
	if err := config.Validate(record); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	params, err := record.Genesis.LedgerParams()
	if err != nil {
		return nil, err
	}
	ledgerOpts := []ledger.Option{ledger.WithParams(params), ledger.WithLogger(o.logger)}
	if o.emitter != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithEmitter(o.emitter))
	}
	l, err := ledger.New(db, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	levCfg, err := record.LeverageConfig()
	if err != nil {
		return nil, err
	}
	engine := leverage.NewEngine()
	engine.SetLogger(o.logger.With(slog.String("contract", config.LabelLeverage)))
	pauses := nativecommon.NewPauses(record.Pauses.Modules()...)
	engine.SetPauses(pauses)

	registrations := []struct {
		label    string
		contract ledger.Contract
		want     string
	}{
		{config.LabelToken, hub.NewToken(), record.Contracts.Token},
		{config.LabelHub, hub.NewHub(), record.Contracts.Hub},
		{config.LabelCustody, moneymarket.NewCustody(), record.Contracts.Custody},
		{config.LabelOverseer, moneymarket.NewOverseer(), record.Contracts.Overseer},
		{config.LabelMarket, moneymarket.NewMarket(), record.Contracts.Market},
		{config.LabelPair, pair.NewPair(), record.Contracts.Pair},
		{config.LabelLeverage, engine, record.Contracts.Leverage},
	}
	for _, r := range registrations {
		addr, err := l.Register(r.label, r.contract)
		if err != nil {
			return nil, err
		}
		if addr.String() != r.want {
			return nil, fmt.Errorf("%w: %s is %s, record has %s", ErrAddressMismatch, r.label, addr, r.want)
		}
	}
	self, err := record.LeverageAddress()
	if err != nil {
		return nil, err
	}

	d := &Devnet{Ledger: l, Config: levCfg, Leverage: self, Engine: engine, Pauses: pauses, logger: o.logger}
	if _, err := l.Query(ctx, self, mustJSON(leverage.QueryMsg{Config: &leverage.ConfigQuery{}})); err == nil {
		o.logger.Info("devnet already deployed", slog.Uint64("height", l.Block().Height))
		return d, nil
	} else if !errors.Is(err, leverage.ErrNotInstantiated) {
		return nil, err
	}
	if err := d.instantiate(ctx, record.Genesis); err != nil {
		return nil, err
	}
	o.logger.Info("devnet deployed",
		slog.String("chain_id", params.ChainID),
		slog.String("leverage", self.String()),
		slog.Uint64("height", l.Block().Height))
	return d, nil
}

func (d *Devnet) instantiate(ctx context.Context, g config.Genesis) error {
	rate, err := g.HubRate()
	if err != nil {
		return err
	}
	price, maxLTV, err := g.MarketParams()
	if err != nil {
		return err
	}
	commission, err := g.Commission()
	if err != nil {
		return err
	}
	validators, err := g.ValidatorAddresses()
	if err != nil {
		return err
	}
	cfg := d.Config
	pairAddr := cfg.Pair
	if err := d.Ledger.Mint(pairAddr,
		types.NewCoinU64(leverage.AcceptedDenom, g.PoolNative),
		types.NewCoinU64(leverage.StableDenom, g.PoolStable)); err != nil {
		return err
	}
	if err := d.Ledger.Mint(cfg.Market, types.NewCoinU64(leverage.StableDenom, g.MarketReserve)); err != nil {
		return err
	}

	steps := []struct {
		contract crypto.Address
		msg      interface{}
	}{
		{cfg.Token, hub.TokenInstantiateMsg{
			Name:      "Bonded Luna",
			Symbol:    "BLUNA",
			Decimals:  6,
			Minter:    cfg.Hub,
			Operators: []crypto.Address{cfg.Custody},
		}},
		{cfg.Hub, hub.InstantiateMsg{
			Token:        cfg.Token,
			ExchangeRate: rate,
			Denom:        leverage.AcceptedDenom,
			Validators:   validators,
		}},
		{cfg.Custody, moneymarket.CustodyInstantiateMsg{Token: cfg.Token, Overseer: cfg.Overseer}},
		{cfg.Overseer, moneymarket.OverseerInstantiateMsg{Custody: cfg.Custody, Price: price, MaxLTV: maxLTV}},
		{cfg.Market, moneymarket.MarketInstantiateMsg{Overseer: cfg.Overseer, StableDenom: leverage.StableDenom}},
		{pairAddr, pair.InstantiateMsg{
			Denoms:     [2]string{leverage.AcceptedDenom, leverage.StableDenom},
			Commission: commission,
		}},
		{d.Leverage, leverage.InstantiateMsg{Config: cfg}},
	}
	for _, s := range steps {
		raw, err := json.Marshal(s.msg)
		if err != nil {
			return err
		}
		if _, err := d.Ledger.Instantiate(ctx, Admin, s.contract, raw, nil); err != nil {
			label, _ := d.Ledger.Label(s.contract)
			return fmt.Errorf("devnet: instantiate %s: %w", label, err)
		}
	}
	return nil
}

// Fund credits genesis coins to addr.
func (d *Devnet) Fund(addr crypto.Address, coins ...types.Coin) error {
	return d.Ledger.Mint(addr, coins...)
}

// QueryLeverage runs a controller query and decodes the answer into out.
func (d *Devnet) QueryLeverage(ctx context.Context, q leverage.QueryMsg, out interface{}) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	res, err := d.Ledger.Query(ctx, d.Leverage, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}

// Position is the controller's standing with the money market.
type Position struct {
	Collateral     *uint256.Int `json:"collateral"`
	Loan           *uint256.Int `json:"loan"`
	BorrowLimit    *uint256.Int `json:"borrow_limit"`
	PossibleBorrow *uint256.Int `json:"possible_borrow"`
	NativeBalance  *uint256.Int `json:"native_balance"`
}

// Position reads the controller's collateral, loan and remaining capacity.
func (d *Devnet) Position(ctx context.Context) (Position, error) {
	var collateral leverage.CollateralResponse
	if err := d.QueryLeverage(ctx, leverage.QueryMsg{Collateral: &leverage.CollateralQuery{Target: d.Leverage}}, &collateral); err != nil {
		return Position{}, err
	}
	var borrow leverage.PossibleBorrowResponse
	if err := d.QueryLeverage(ctx, leverage.QueryMsg{PossibleBorrow: &leverage.PossibleBorrowQuery{Target: d.Leverage}}, &borrow); err != nil {
		return Position{}, err
	}
	native, err := d.Ledger.Balance(d.Leverage, leverage.AcceptedDenom)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Collateral:     collateral.Balance,
		Loan:           borrow.AlreadyBorrowed,
		BorrowLimit:    borrow.BorrowLimit,
		PossibleBorrow: borrow.BorrowAmount,
		NativeBalance:  native,
	}, nil
}

func mustJSON(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
