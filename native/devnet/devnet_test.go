package devnet

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/holiman/uint256"

	"leverageloop/config"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
	"leverageloop/native/hub"
	"leverageloop/native/leverage"
	"leverageloop/storage"
)

var depositor = crypto.AccountAddress(crypto.AccountPrefix, "depositor")

func newDevnet(t *testing.T, record *config.Config) *Devnet {
	t.Helper()
	d, err := Deploy(context.Background(), storage.NewMemDB(), record)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := d.Fund(depositor, types.NewCoinU64(leverage.AcceptedDenom, 100_000_000)); err != nil {
		t.Fatalf("fund depositor: %v", err)
	}
	return d
}

func requireAmount(t *testing.T, name string, got *uint256.Int, want uint64) {
	t.Helper()
	if got == nil || !got.Eq(uint256.NewInt(want)) {
		t.Fatalf("%s: expected %d, got %v", name, want, got)
	}
}

func TestDeployInstantiatesContracts(t *testing.T) {
	d := newDevnet(t, nil)
	var cfg leverage.ConfigResponse
	if err := d.QueryLeverage(context.Background(), leverage.QueryMsg{Config: &leverage.ConfigQuery{}}, &cfg); err != nil {
		t.Fatalf("config query: %v", err)
	}
	if !cfg.Equal(d.Config) {
		t.Fatalf("unexpected config %+v", cfg)
	}
	var estimate leverage.EstimateBondResponse
	err := d.QueryLeverage(context.Background(), leverage.QueryMsg{
		EstimateBond: &leverage.EstimateBondQuery{Amount: uint256.NewInt(1000)},
	}, &estimate)
	if err != nil {
		t.Fatalf("estimate query: %v", err)
	}
	requireAmount(t, "estimate", estimate.Bonded, 950)
	// Genesis mints do not advance the chain; each instantiation does.
	if h := d.Ledger.Block().Height; h != 8 {
		t.Fatalf("expected height 8 after deployment, got %d", h)
	}
}

func TestCycleSmallDepositStopsAfterFirstSwap(t *testing.T) {
	d := newDevnet(t, nil)
	ctx := context.Background()

	res, err := d.Cycle(ctx, depositor, uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	wantActions := []string{
		"deposit", "bond", "mint",
		"deposit_collateral", "deposit_collateral", "transfer_from", "lock_collateral", "lock_collateral",
		"borrow", "borrow_stable", "send",
		"swap", "swap", "send",
	}
	if got := res.Receipt.Actions(); !reflect.DeepEqual(got, wantActions) {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", got, wantActions)
	}
	wantSteps := []string{"deposit", "deposit_collateral", "borrow", "swap"}
	if !reflect.DeepEqual(res.Steps, wantSteps) {
		t.Fatalf("unexpected steps %v", res.Steps)
	}
	if res.Phase != leverage.PhaseStopped || res.Loops != 1 || res.Redeposits != 0 {
		t.Fatalf("unexpected summary phase=%s loops=%d redeposits=%d", res.Phase, res.Loops, res.Redeposits)
	}
	if res.StopReason != "below stop threshold" {
		t.Fatalf("unexpected stop reason %q", res.StopReason)
	}

	requireAmount(t, "collateral", res.Position.Collateral, 950)
	requireAmount(t, "loan", res.Position.Loan, 33_250)
	requireAmount(t, "borrow limit", res.Position.BorrowLimit, 47_500)
	requireAmount(t, "possible borrow", res.Position.PossibleBorrow, 0)
	requireAmount(t, "native", res.Position.NativeBalance, 332)

	var balance hub.BalanceResponse
	if err := queryJSON(d, d.Config.Token, hub.TokenQueryMsg{Balance: &hub.BalanceQuery{Address: d.Config.Custody}}, &balance); err != nil {
		t.Fatalf("token balance: %v", err)
	}
	requireAmount(t, "custody tokens", balance.Balance, 950)

	left, err := d.Ledger.Balance(depositor, leverage.AcceptedDenom)
	if err != nil {
		t.Fatalf("depositor balance: %v", err)
	}
	requireAmount(t, "depositor", left, 100_000_000-1000)

	if got := len(res.Receipt.EventsOfType("leverage.stopped")); got != 1 {
		t.Fatalf("expected one stopped event, got %d", got)
	}
}

func TestCycleLargeDepositLoops(t *testing.T) {
	d := newDevnet(t, nil)

	res, err := d.Cycle(context.Background(), depositor, uint256.NewInt(10_000_000))
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Loops != 5 || res.Redeposits != 4 {
		t.Fatalf("expected 5 loops and 4 redeposits, got %d and %d", res.Loops, res.Redeposits)
	}
	if len(res.Steps) != 20 || len(res.Receipt.Trace) != 70 {
		t.Fatalf("expected 20 steps in 70 calls, got %d in %d", len(res.Steps), len(res.Receipt.Trace))
	}
	if res.Steps[len(res.Steps)-1] != "swap" || res.Phase != leverage.PhaseStopped {
		t.Fatalf("expected the cycle to stop on swap, got %s in %s", res.Steps[len(res.Steps)-1], res.Phase)
	}
	requireAmount(t, "collateral", res.Position.Collateral, 14_133_891)
	requireAmount(t, "loan", res.Position.Loan, 494_686_185)
	requireAmount(t, "borrow limit", res.Position.BorrowLimit, 706_694_550)
	requireAmount(t, "native", res.Position.NativeBalance, 39_438)
}

func TestCycleRejectsWrongDenomination(t *testing.T) {
	d := newDevnet(t, nil)
	if err := d.Fund(depositor, types.NewCoinU64(leverage.StableDenom, 5_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	before := d.Ledger.Block().Height

	msg := []byte(`{"deposit":{}}`)
	receipt, err := d.Ledger.Execute(context.Background(), depositor, d.Leverage, msg,
		types.Coins{types.NewCoinU64(leverage.StableDenom, 1_000)})
	if !errors.Is(err, leverage.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !receipt.Reverted {
		t.Fatalf("expected reverted receipt")
	}
	left, _ := d.Ledger.Balance(depositor, leverage.StableDenom)
	requireAmount(t, "stable balance", left, 5_000)
	if d.Ledger.Block().Height != before+1 {
		t.Fatalf("reverted transaction must still consume a block")
	}
}

func TestContinuationCommandsAreSelfOnly(t *testing.T) {
	d := newDevnet(t, nil)
	for _, msg := range []string{`{"deposit_collateral":{}}`, `{"borrow":{}}`, `{"swap":{"amount":"100"}}`, `{"redeposit":{}}`} {
		_, err := d.Ledger.Execute(context.Background(), depositor, d.Leverage, []byte(msg), nil)
		if !errors.Is(err, leverage.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", msg, err)
		}
	}
}

func TestPausedControllerRejectsDeposits(t *testing.T) {
	record := config.Default()
	record.Pauses.Leverage = true
	d := newDevnet(t, record)

	_, err := d.Cycle(context.Background(), depositor, uint256.NewInt(1000))
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	d.Pauses.Set("leverage", false)
	if _, err := d.Cycle(context.Background(), depositor, uint256.NewInt(1000)); err != nil {
		t.Fatalf("cycle after unpause: %v", err)
	}
}

func TestDeployRejectsMismatchedRecord(t *testing.T) {
	record := config.Default()
	record.Contracts.Hub = crypto.ContractAddress("somewhere-else").String()
	_, err := Deploy(context.Background(), storage.NewMemDB(), record)
	if !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected address mismatch, got %v", err)
	}
}

func TestRedeployReusesPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	d, err := Deploy(ctx, db, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := d.Fund(depositor, types.NewCoinU64(leverage.AcceptedDenom, 5_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := d.Cycle(ctx, depositor, uint256.NewInt(1000)); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	height := d.Ledger.Block().Height
	db.Close()

	db, err = storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer db.Close()
	d, err = Deploy(ctx, db, nil)
	if err != nil {
		t.Fatalf("redeploy: %v", err)
	}
	if d.Ledger.Block().Height != height {
		t.Fatalf("expected height %d after reopen, got %d", height, d.Ledger.Block().Height)
	}
	pos, err := d.Position(ctx)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	requireAmount(t, "collateral", pos.Collateral, 950)
	requireAmount(t, "loan", pos.Loan, 33_250)
}

func queryJSON(d *Devnet, contract crypto.Address, req, out interface{}) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	res, err := d.Ledger.Query(context.Background(), contract, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}
