package moneymarket

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
	"leverageloop/native/hub"
	"leverageloop/storage"
)

var (
	admin    = crypto.AccountAddress(crypto.AccountPrefix, "admin")
	borrower = crypto.AccountAddress(crypto.AccountPrefix, "borrower")
)

type fixture struct {
	l                                *ledger.Ledger
	token, custody, overseer, market crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := ledger.New(storage.NewMemDB())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	f := &fixture{l: l}
	register := func(label string, c ledger.Contract) crypto.Address {
		addr, err := l.Register(label, c)
		if err != nil {
			t.Fatalf("register %s: %v", label, err)
		}
		return addr
	}
	f.token = register("token", hub.NewToken())
	f.custody = register("custody", NewCustody())
	f.overseer = register("overseer", NewOverseer())
	f.market = register("market", NewMarket())

	f.instantiate(t, f.token, hub.TokenInstantiateMsg{Symbol: "BLUNA", Minter: admin, Operators: []crypto.Address{f.custody}})
	f.instantiate(t, f.custody, CustodyInstantiateMsg{Token: f.token, Overseer: f.overseer})
	f.instantiate(t, f.overseer, OverseerInstantiateMsg{
		Custody: f.custody,
		Price:   types.MustParseDecimal("100"),
		MaxLTV:  types.MustParseDecimal("0.5"),
	})
	f.instantiate(t, f.market, MarketInstantiateMsg{Overseer: f.overseer, StableDenom: "uusd"})

	if err := l.Mint(f.market, types.NewCoinU64("uusd", 1_000_000_000)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	f.mustExec(t, admin, f.token, hub.TokenExecuteMsg{Mint: &hub.MintMsg{Recipient: borrower, Amount: uint256.NewInt(1000)}})
	return f
}

func (f *fixture) instantiate(t *testing.T, contract crypto.Address, msg interface{}) {
	t.Helper()
	raw, _ := json.Marshal(msg)
	if _, err := f.l.Instantiate(context.Background(), admin, contract, raw, nil); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
}

func (f *fixture) exec(sender, contract crypto.Address, msg interface{}) (*ledger.Receipt, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return f.l.Execute(context.Background(), sender, contract, raw, nil)
}

func (f *fixture) mustExec(t *testing.T, sender, contract crypto.Address, msg interface{}) *ledger.Receipt {
	t.Helper()
	receipt, err := f.exec(sender, contract, msg)
	if err != nil {
		t.Fatalf("execute %s: %v", types.MessageName(mustJSON(msg)), err)
	}
	return receipt
}

func (f *fixture) query(t *testing.T, contract crypto.Address, req, out interface{}) {
	t.Helper()
	res, err := f.l.Query(context.Background(), contract, mustJSON(req))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if err := json.Unmarshal(res, out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func mustJSON(v interface{}) []byte {
	raw, _ := json.Marshal(v)
	return raw
}

func (f *fixture) depositAndLock(t *testing.T, deposit, lock uint64) {
	t.Helper()
	f.mustExec(t, borrower, f.custody, CustodyExecuteMsg{
		DepositCollateral: &DepositCollateralMsg{Token: f.token, Amount: uint256.NewInt(deposit)},
	})
	f.mustExec(t, borrower, f.overseer, OverseerExecuteMsg{
		LockCollateral: &LockCollateralMsg{Collaterals: []Collateral{{Custody: f.custody, Amount: uint256.NewInt(lock)}}},
	})
}

func TestDepositAndLockCollateral(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustExec(t, borrower, f.custody, CustodyExecuteMsg{
		DepositCollateral: &DepositCollateralMsg{Token: f.token, Amount: uint256.NewInt(1000)},
	})
	if got := receipt.Actions(); !reflect.DeepEqual(got, []string{"deposit_collateral", "transfer_from"}) {
		t.Fatalf("unexpected actions %v", got)
	}
	receipt = f.mustExec(t, borrower, f.overseer, OverseerExecuteMsg{
		LockCollateral: &LockCollateralMsg{Collaterals: []Collateral{{Custody: f.custody, Amount: uint256.NewInt(600)}}},
	})
	if got := receipt.Actions(); !reflect.DeepEqual(got, []string{"lock_collateral", "lock_collateral"}) {
		t.Fatalf("unexpected actions %v", got)
	}

	var snapshot BorrowerResponse
	f.query(t, f.custody, CustodyQueryMsg{Borrower: &BorrowerQuery{Address: borrower}}, &snapshot)
	if !snapshot.Balance.Eq(uint256.NewInt(1000)) || !snapshot.Spendable.Eq(uint256.NewInt(400)) {
		t.Fatalf("unexpected custody snapshot %+v", snapshot)
	}
	var held hub.BalanceResponse
	f.query(t, f.token, hub.TokenQueryMsg{Balance: &hub.BalanceQuery{Address: f.custody}}, &held)
	if !held.Balance.Eq(uint256.NewInt(1000)) {
		t.Fatalf("expected custody to hold tokens, got %s", held.Balance.Dec())
	}
	var limit BorrowLimitResponse
	f.query(t, f.overseer, OverseerQueryMsg{BorrowLimit: &BorrowLimitQuery{Borrower: borrower}}, &limit)
	if !limit.BorrowLimit.Eq(uint256.NewInt(30_000)) {
		t.Fatalf("expected limit 30000, got %s", limit.BorrowLimit.Dec())
	}
}

func TestCollateralGuards(t *testing.T) {
	f := newFixture(t)
	f.depositAndLock(t, 1000, 600)

	_, err := f.exec(borrower, f.overseer, OverseerExecuteMsg{
		LockCollateral: &LockCollateralMsg{Collaterals: []Collateral{{Custody: f.custody, Amount: uint256.NewInt(401)}}},
	})
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral, got %v", err)
	}
	_, err = f.exec(borrower, f.custody, CustodyExecuteMsg{
		LockCollateral: &CustodyLockMsg{Borrower: borrower, Amount: uint256.NewInt(1)},
	})
	if !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, err = f.exec(borrower, f.custody, CustodyExecuteMsg{
		DepositCollateral: &DepositCollateralMsg{Token: f.market, Amount: uint256.NewInt(1)},
	})
	if !errors.Is(err, ErrUnsupportedCollateral) {
		t.Fatalf("expected unsupported collateral, got %v", err)
	}
	_, err = f.exec(borrower, f.custody, CustodyExecuteMsg{
		DepositCollateral: &DepositCollateralMsg{Token: f.token, Amount: uint256.NewInt(1)},
	})
	if !errors.Is(err, hub.ErrInsufficientTokens) {
		t.Fatalf("expected the token pull to fail, got %v", err)
	}
}

func TestBorrowStablePaysNetOfTax(t *testing.T) {
	f := newFixture(t)
	f.depositAndLock(t, 1000, 600)

	receipt := f.mustExec(t, borrower, f.market, MarketExecuteMsg{
		BorrowStable: &BorrowStableMsg{BorrowAmount: uint256.NewInt(20_000)},
	})
	if got := receipt.Actions(); !reflect.DeepEqual(got, []string{"borrow_stable", "send"}) {
		t.Fatalf("unexpected actions %v", got)
	}
	received, _ := f.l.Balance(borrower, "uusd")
	if !received.Eq(uint256.NewInt(19_980)) {
		t.Fatalf("expected 19980 after tax, got %s", received.Dec())
	}
	reserve, _ := f.l.Balance(f.market, "uusd")
	if !reserve.Eq(uint256.NewInt(1_000_000_000 - 19_980 - 19)) {
		t.Fatalf("unexpected market reserve %s", reserve.Dec())
	}

	var info BorrowerInfoResponse
	f.query(t, f.market, MarketQueryMsg{BorrowerInfo: &BorrowerInfoQuery{Borrower: borrower}}, &info)
	if !info.LoanAmount.Eq(uint256.NewInt(20_000)) {
		t.Fatalf("expected loan 20000, got %s", info.LoanAmount.Dec())
	}

	_, err := f.exec(borrower, f.market, MarketExecuteMsg{
		BorrowStable: &BorrowStableMsg{BorrowAmount: uint256.NewInt(10_001)},
	})
	if !errors.Is(err, ErrBorrowExceedsLimit) {
		t.Fatalf("expected limit error, got %v", err)
	}

	to := crypto.AccountAddress(crypto.AccountPrefix, "beneficiary")
	f.mustExec(t, borrower, f.market, MarketExecuteMsg{
		BorrowStable: &BorrowStableMsg{BorrowAmount: uint256.NewInt(10_000), To: &to},
	})
	paid, _ := f.l.Balance(to, "uusd")
	if !paid.Eq(uint256.NewInt(9_990)) {
		t.Fatalf("expected 9990 to beneficiary, got %s", paid.Dec())
	}
	var state MarketStateResponse
	f.query(t, f.market, MarketQueryMsg{State: &MarketStateQuery{}}, &state)
	if !state.TotalLiabilities.Eq(uint256.NewInt(30_000)) {
		t.Fatalf("expected liabilities 30000, got %s", state.TotalLiabilities.Dec())
	}
}

func TestUpdatePriceMovesBorrowLimit(t *testing.T) {
	f := newFixture(t)
	f.depositAndLock(t, 1000, 600)
	update := OverseerExecuteMsg{UpdatePrice: &UpdatePriceMsg{Price: types.MustParseDecimal("200")}}
	if _, err := f.exec(borrower, f.overseer, update); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	f.mustExec(t, admin, f.overseer, update)
	var limit BorrowLimitResponse
	f.query(t, f.overseer, OverseerQueryMsg{BorrowLimit: &BorrowLimitQuery{Borrower: borrower}}, &limit)
	if !limit.BorrowLimit.Eq(uint256.NewInt(60_000)) {
		t.Fatalf("expected limit 60000, got %s", limit.BorrowLimit.Dec())
	}
}

func TestCollateralJSON(t *testing.T) {
	c := Collateral{Custody: crypto.ContractAddress("custody"), Amount: uint256.NewInt(42)}
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `["` + c.Custody.String() + `","42"]`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}
	var back Collateral
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Custody.Equal(c.Custody) || !back.Amount.Eq(c.Amount) {
		t.Fatalf("round trip mismatch %+v", back)
	}
}

func TestBorrowLimit(t *testing.T) {
	limit, err := BorrowLimit(uint256.NewInt(950), types.MustParseDecimal("100"), types.MustParseDecimal("0.5"))
	if err != nil || !limit.Eq(uint256.NewInt(47_500)) {
		t.Fatalf("expected 47500, got %v (%v)", limit, err)
	}
}
