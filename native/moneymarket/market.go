package moneymarket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

var totalLiabilitiesKey = []byte("total_liabilities")

type storedMarket struct {
	Overseer    []byte
	StableDenom string
}

var _ ledger.Contract = (*Market)(nil)

// Market lends the stable denomination against the overseer's borrow limit
// and pays the loan out of its own bank balance.
type Market struct{}

func NewMarket() *Market { return &Market{} }

func loanKey(borrower crypto.Address) []byte { return nativecommon.Key("loan", borrower) }

func (m *Market) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, _ types.MessageInfo, msg []byte) (*types.Response, error) {
	var init MarketInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("market: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Overseer.IsZero() || init.StableDenom == "" {
		return nil, fmt.Errorf("market: %w: overseer and stable_denom required", nativecommon.ErrInvalidMsg)
	}
	if err := nativecommon.PutRLP(deps.Store, configKey, storedMarket{
		Overseer:    init.Overseer.Bytes(),
		StableDenom: init.StableDenom,
	}); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("stable_denom", init.StableDenom), nil
}

func (m *Market) Execute(ctx context.Context, deps ledger.Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec MarketExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	if exec.BorrowStable == nil {
		return nil, fmt.Errorf("market: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
	overseer, denom, err := loadMarket(deps.Store)
	if err != nil {
		return nil, err
	}
	amount := exec.BorrowStable.BorrowAmount
	if err := positive(amount); err != nil {
		return nil, err
	}
	blockTime := env.Block.Time
	var limit BorrowLimitResponse
	if err := ledger.QueryJSON(ctx, deps.Querier, overseer, OverseerQueryMsg{
		BorrowLimit: &BorrowLimitQuery{Borrower: info.Sender, BlockTime: &blockTime},
	}, &limit); err != nil {
		return nil, err
	}
	loan, err := nativecommon.GetAmount(deps.Store, loanKey(info.Sender))
	if err != nil {
		return nil, err
	}
	if limit.BorrowLimit == nil {
		limit.BorrowLimit = new(uint256.Int)
	}
	next, overflow := new(uint256.Int).AddOverflow(loan, amount)
	if overflow || next.Gt(limit.BorrowLimit) {
		return nil, fmt.Errorf("%w: limit %s, loan %s, requested %s",
			ErrBorrowExceedsLimit, limit.BorrowLimit.Dec(), loan.Dec(), amount.Dec())
	}
	if err := nativecommon.SetAmount(deps.Store, loanKey(info.Sender), next); err != nil {
		return nil, err
	}
	if _, err := nativecommon.AddAmount(deps.Store, totalLiabilitiesKey, amount); err != nil {
		return nil, err
	}

	rate, err := deps.Querier.TaxRate(ctx)
	if err != nil {
		return nil, err
	}
	taxCap, err := deps.Querier.TaxCap(ctx, denom)
	if err != nil {
		return nil, err
	}
	net, err := ledger.DeductTax(amount, rate, taxCap)
	if err != nil {
		return nil, err
	}
	to := info.Sender
	if exec.BorrowStable.To != nil && !exec.BorrowStable.To.IsZero() {
		to = *exec.BorrowStable.To
	}
	resp := types.NewResponse().
		AddAttribute("action", "borrow_stable").
		AddAttribute("borrower", info.Sender.String()).
		AddAttribute("borrow_amount", amount.Dec()).
		AddAttribute("received", net.Dec())
	if !net.IsZero() {
		resp.AddCall(types.NewBankSend(to, types.NewCoin(denom, net)))
	}
	return resp, nil
}

func (m *Market) Query(_ context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q MarketQueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	switch {
	case q.BorrowerInfo != nil:
		loan, err := nativecommon.GetAmount(deps.Store, loanKey(q.BorrowerInfo.Borrower))
		if err != nil {
			return nil, err
		}
		return json.Marshal(BorrowerInfoResponse{Borrower: q.BorrowerInfo.Borrower, LoanAmount: loan})
	case q.State != nil:
		total, err := nativecommon.GetAmount(deps.Store, totalLiabilitiesKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(MarketStateResponse{TotalLiabilities: total})
	default:
		return nil, fmt.Errorf("market: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
}

func loadMarket(store ledger.KVStore) (crypto.Address, string, error) {
	var stored storedMarket
	ok, err := nativecommon.GetRLP(store, configKey, &stored)
	if err != nil {
		return crypto.Address{}, "", err
	}
	if !ok {
		return crypto.Address{}, "", ErrNotInstantiated
	}
	overseer, err := crypto.NewAddress(crypto.AccountPrefix, stored.Overseer)
	if err != nil {
		return crypto.Address{}, "", fmt.Errorf("market: overseer: %w", err)
	}
	return overseer, stored.StableDenom, nil
}
