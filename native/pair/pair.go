package pair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

var (
	ErrInvalidOffer          = errors.New("pair: attached funds must match the offer asset")
	ErrInsufficientLiquidity = errors.New("pair: insufficient liquidity")
	ErrMaxSpread             = errors.New("pair: spread exceeds max_spread")
	ErrNotInstantiated       = errors.New("pair: not instantiated")
)

// DefaultCommission is charged on the returned asset when none is configured.
var DefaultCommission = types.DecimalPermille(3)

var configKey = []byte("config")

type storedPair struct {
	Denoms     [2]string
	Commission *big.Int
}

type pairConfig struct {
	denoms     [2]string
	commission types.Decimal
}

func (c pairConfig) other(denom string) (string, bool) {
	switch denom {
	case c.denoms[0]:
		return c.denoms[1], true
	case c.denoms[1]:
		return c.denoms[0], true
	default:
		return "", false
	}
}

var _ ledger.Contract = (*Pair)(nil)

// Pair is a constant product pool over two native denominations. Its
// reserves are its own bank balances.
type Pair struct{}

func NewPair() *Pair { return &Pair{} }

func (p *Pair) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var init InstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("pair: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Denoms[0] == "" || init.Denoms[1] == "" || init.Denoms[0] == init.Denoms[1] {
		return nil, fmt.Errorf("pair: %w: two distinct denoms required", nativecommon.ErrInvalidMsg)
	}
	if init.Commission.IsZero() {
		init.Commission = DefaultCommission
	}
	if init.Commission.Cmp(types.DecimalOne()) >= 0 {
		return nil, fmt.Errorf("pair: %w: commission must be below one", nativecommon.ErrInvalidMsg)
	}
	if err := nativecommon.PutRLP(deps.Store, configKey, storedPair{
		Denoms:     init.Denoms,
		Commission: init.Commission.Atomics().ToBig(),
	}); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("pair", init.Denoms[0]+"-"+init.Denoms[1]).
		AddAttribute("liquidity", info.Funds.String()), nil
}

func (p *Pair) Execute(ctx context.Context, deps ledger.Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec ExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	cfg, err := loadPair(deps.Store)
	if err != nil {
		return nil, err
	}
	switch {
	case exec.Swap != nil:
		return p.swap(ctx, deps.Querier, cfg, env.Contract.Address, info, exec.Swap)
	case exec.ProvideLiquidity != nil:
		for _, coin := range info.Funds {
			if _, ok := cfg.other(coin.Denom); !ok {
				return nil, fmt.Errorf("pair: %w: denom %s", nativecommon.ErrInvalidMsg, coin.Denom)
			}
		}
		return types.NewResponse().
			AddAttribute("action", "provide_liquidity").
			AddAttribute("provider", info.Sender.String()).
			AddAttribute("assets", info.Funds.String()), nil
	default:
		return nil, fmt.Errorf("pair: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
}

func (p *Pair) swap(ctx context.Context, q ledger.Querier, cfg pairConfig, self crypto.Address, info types.MessageInfo, msg *SwapMsg) (*types.Response, error) {
	offer := msg.OfferAsset
	if offer.Amount == nil || offer.Amount.IsZero() || len(info.Funds) != 1 ||
		info.Funds[0].Denom != offer.Denom || !info.Funds[0].Amount.Eq(offer.Amount) {
		return nil, ErrInvalidOffer
	}
	askDenom, ok := cfg.other(offer.Denom)
	if !ok {
		return nil, fmt.Errorf("%w: denom %s", ErrInvalidOffer, offer.Denom)
	}
	offerBalance, err := q.Balance(ctx, self, offer.Denom)
	if err != nil {
		return nil, err
	}
	// The offered coins were credited before this call ran.
	offerPool, underflow := new(uint256.Int).SubOverflow(offerBalance, offer.Amount)
	if underflow {
		return nil, ErrInsufficientLiquidity
	}
	askPool, err := q.Balance(ctx, self, askDenom)
	if err != nil {
		return nil, err
	}
	result, err := ComputeSwap(offerPool, askPool, offer.Amount, cfg.commission)
	if err != nil {
		return nil, err
	}
	if err := checkSpread(offer.Amount, result, msg.BeliefPrice, msg.MaxSpread); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddCall(types.NewBankSend(info.Sender, types.NewCoin(askDenom, result.ReturnAmount))).
		AddAttribute("action", "swap").
		AddAttribute("offer_asset", offer.Denom).
		AddAttribute("ask_asset", askDenom).
		AddAttribute("offer_amount", offer.Amount.Dec()).
		AddAttribute("return_amount", result.ReturnAmount.Dec()).
		AddAttribute("spread_amount", result.SpreadAmount.Dec()).
		AddAttribute("commission_amount", result.CommissionAmount.Dec()), nil
}

// ComputeSwap prices offer against the pools with the constant product
// formula and takes commission out of the returned side.
func ComputeSwap(offerPool, askPool, offer *uint256.Int, commission types.Decimal) (SimulationResponse, error) {
	if offerPool.IsZero() || askPool.IsZero() {
		return SimulationResponse{}, ErrInsufficientLiquidity
	}
	denominator, overflow := new(uint256.Int).AddOverflow(offerPool, offer)
	if overflow {
		return SimulationResponse{}, types.ErrDecimalOverflow
	}
	remaining, overflow := new(uint256.Int).MulDivOverflow(offerPool, askPool, denominator)
	if overflow {
		return SimulationResponse{}, types.ErrDecimalOverflow
	}
	gross := new(uint256.Int).Sub(askPool, remaining)
	expected, overflow := new(uint256.Int).MulDivOverflow(offer, askPool, offerPool)
	if overflow {
		return SimulationResponse{}, types.ErrDecimalOverflow
	}
	spread := new(uint256.Int)
	if expected.Gt(gross) {
		spread.Sub(expected, gross)
	}
	fee, err := commission.MulInt(gross)
	if err != nil {
		return SimulationResponse{}, err
	}
	net := new(uint256.Int).Sub(gross, fee)
	if net.IsZero() {
		return SimulationResponse{}, ErrInsufficientLiquidity
	}
	return SimulationResponse{ReturnAmount: net, SpreadAmount: spread, CommissionAmount: fee}, nil
}

func checkSpread(offer *uint256.Int, result SimulationResponse, beliefPrice, maxSpread *types.Decimal) error {
	if maxSpread == nil {
		return nil
	}
	received := new(uint256.Int).Add(result.ReturnAmount, result.CommissionAmount)
	spread := result.SpreadAmount
	total := new(uint256.Int).Add(received, spread)
	if beliefPrice != nil && !beliefPrice.IsZero() {
		expected, overflow := new(uint256.Int).MulDivOverflow(offer, types.DecimalFractional, beliefPrice.Atomics())
		if overflow {
			return types.ErrDecimalOverflow
		}
		spread = new(uint256.Int)
		if expected.Gt(received) {
			spread.Sub(expected, received)
		}
		total = expected
	}
	if total.IsZero() {
		return nil
	}
	ratio, err := types.DecimalFromRatio(spread, total)
	if err != nil {
		return err
	}
	if ratio.Cmp(*maxSpread) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrMaxSpread, ratio, maxSpread)
	}
	return nil
}

func (p *Pair) Query(ctx context.Context, deps ledger.Deps, env types.Env, msg []byte) ([]byte, error) {
	var q QueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	cfg, err := loadPair(deps.Store)
	if err != nil {
		return nil, err
	}
	self := env.Contract.Address
	switch {
	case q.Pool != nil:
		var resp PoolResponse
		for i, denom := range cfg.denoms {
			amount, err := deps.Querier.Balance(ctx, self, denom)
			if err != nil {
				return nil, err
			}
			resp.Assets[i] = Asset{Amount: amount, Denom: denom}
		}
		return json.Marshal(resp)
	case q.Simulation != nil:
		offer := q.Simulation.OfferAsset
		askDenom, ok := cfg.other(offer.Denom)
		if !ok || offer.Amount == nil {
			return nil, fmt.Errorf("%w: denom %s", ErrInvalidOffer, offer.Denom)
		}
		offerPool, err := deps.Querier.Balance(ctx, self, offer.Denom)
		if err != nil {
			return nil, err
		}
		askPool, err := deps.Querier.Balance(ctx, self, askDenom)
		if err != nil {
			return nil, err
		}
		result, err := ComputeSwap(offerPool, askPool, offer.Amount, cfg.commission)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	default:
		return nil, fmt.Errorf("pair: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
}

func loadPair(store ledger.KVStore) (pairConfig, error) {
	var stored storedPair
	ok, err := nativecommon.GetRLP(store, configKey, &stored)
	if err != nil {
		return pairConfig{}, err
	}
	if !ok {
		return pairConfig{}, ErrNotInstantiated
	}
	commission, overflow := uint256.FromBig(stored.Commission)
	if overflow {
		return pairConfig{}, types.ErrDecimalOverflow
	}
	return pairConfig{denoms: stored.Denoms, commission: types.NewDecimalFromAtomics(commission)}, nil
}
