package leverage

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/hub"
	"leverageloop/native/moneymarket"
)

// Gateway is the read-only view of the collaborating contracts a step relies
// on. Answers reflect every call delivered before the current step, never the
// step's own pending calls.
type Gateway interface {
	ExchangeRate(ctx context.Context) (types.Decimal, error)
	TokenBalance(ctx context.Context, owner crypto.Address) (*uint256.Int, error)
	NativeBalance(ctx context.Context, owner crypto.Address, denom string) (*uint256.Int, error)
	BorrowLimit(ctx context.Context, borrower crypto.Address, blockTime *uint64) (*uint256.Int, error)
	LoanAmount(ctx context.Context, borrower crypto.Address, blockHeight *uint64) (*uint256.Int, error)
	Collateral(ctx context.Context, borrower crypto.Address) (moneymarket.BorrowerResponse, error)
	Tax(ctx context.Context, denom string) (types.Decimal, *uint256.Int, error)
}

// GatewayFactory builds the gateway for one invocation.
type GatewayFactory func(q ledger.Querier, cfg Config) Gateway

// NewGateway answers through ledger queries against the configured contracts.
func NewGateway(q ledger.Querier, cfg Config) Gateway {
	return querierGateway{q: q, cfg: cfg}
}

type querierGateway struct {
	q   ledger.Querier
	cfg Config
}

func (g querierGateway) ExchangeRate(ctx context.Context) (types.Decimal, error) {
	var res hub.StateResponse
	if err := ledger.QueryJSON(ctx, g.q, g.cfg.Hub, hub.QueryMsg{State: &hub.StateQuery{}}, &res); err != nil {
		return types.Decimal{}, err
	}
	return res.ExchangeRate, nil
}

func (g querierGateway) TokenBalance(ctx context.Context, owner crypto.Address) (*uint256.Int, error) {
	var res hub.BalanceResponse
	req := hub.TokenQueryMsg{Balance: &hub.BalanceQuery{Address: owner}}
	if err := ledger.QueryJSON(ctx, g.q, g.cfg.Token, req, &res); err != nil {
		return nil, err
	}
	return orZero(res.Balance), nil
}

func (g querierGateway) NativeBalance(ctx context.Context, owner crypto.Address, denom string) (*uint256.Int, error) {
	return g.q.Balance(ctx, owner, denom)
}

func (g querierGateway) BorrowLimit(ctx context.Context, borrower crypto.Address, blockTime *uint64) (*uint256.Int, error) {
	var res moneymarket.BorrowLimitResponse
	req := moneymarket.OverseerQueryMsg{BorrowLimit: &moneymarket.BorrowLimitQuery{Borrower: borrower, BlockTime: blockTime}}
	if err := ledger.QueryJSON(ctx, g.q, g.cfg.Overseer, req, &res); err != nil {
		return nil, err
	}
	return orZero(res.BorrowLimit), nil
}

func (g querierGateway) LoanAmount(ctx context.Context, borrower crypto.Address, blockHeight *uint64) (*uint256.Int, error) {
	var res moneymarket.BorrowerInfoResponse
	req := moneymarket.MarketQueryMsg{BorrowerInfo: &moneymarket.BorrowerInfoQuery{Borrower: borrower, BlockHeight: blockHeight}}
	if err := ledger.QueryJSON(ctx, g.q, g.cfg.Market, req, &res); err != nil {
		return nil, err
	}
	return orZero(res.LoanAmount), nil
}

func (g querierGateway) Collateral(ctx context.Context, borrower crypto.Address) (moneymarket.BorrowerResponse, error) {
	var res moneymarket.BorrowerResponse
	req := moneymarket.CustodyQueryMsg{Borrower: &moneymarket.BorrowerQuery{Address: borrower}}
	if err := ledger.QueryJSON(ctx, g.q, g.cfg.Custody, req, &res); err != nil {
		return moneymarket.BorrowerResponse{}, err
	}
	res.Balance = orZero(res.Balance)
	res.Spendable = orZero(res.Spendable)
	return res, nil
}

func (g querierGateway) Tax(ctx context.Context, denom string) (types.Decimal, *uint256.Int, error) {
	rate, err := g.q.TaxRate(ctx)
	if err != nil {
		return types.Decimal{}, nil, fmt.Errorf("query tax rate: %w", err)
	}
	taxCap, err := g.q.TaxCap(ctx, denom)
	if err != nil {
		return types.Decimal{}, nil, fmt.Errorf("query tax cap %s: %w", denom, err)
	}
	return rate, taxCap, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
