package pair

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
	"leverageloop/storage"
)

var (
	admin  = crypto.AccountAddress(crypto.AccountPrefix, "admin")
	trader = crypto.AccountAddress(crypto.AccountPrefix, "trader")
)

func newPool(t *testing.T) (*ledger.Ledger, crypto.Address) {
	t.Helper()
	l, err := ledger.New(storage.NewMemDB())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	addr, err := l.Register("pair", NewPair())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := l.Mint(addr, types.NewCoinU64("uluna", 1_000_000_000_000), types.NewCoinU64("uusd", 100_000_000_000_000)); err != nil {
		t.Fatalf("reserves: %v", err)
	}
	raw, _ := json.Marshal(InstantiateMsg{Denoms: [2]string{"uluna", "uusd"}, Commission: types.MustParseDecimal("0.003")})
	if _, err := l.Instantiate(context.Background(), admin, addr, raw, nil); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if err := l.Mint(trader, types.NewCoinU64("uusd", 20_000_000_000_000)); err != nil {
		t.Fatalf("fund trader: %v", err)
	}
	return l, addr
}

func swapMsg(amount uint64, maxSpread *types.Decimal) []byte {
	raw, _ := json.Marshal(ExecuteMsg{Swap: &SwapMsg{
		OfferAsset: Asset{Amount: uint256.NewInt(amount), Denom: "uusd"},
		MaxSpread:  maxSpread,
	}})
	return raw
}

func TestSwapPaysConstantProductReturn(t *testing.T) {
	l, addr := newPool(t)
	ctx := context.Background()

	raw, _ := json.Marshal(QueryMsg{Simulation: &SimulationQuery{OfferAsset: Asset{Amount: uint256.NewInt(33_149), Denom: "uusd"}}})
	res, err := l.Query(ctx, addr, raw)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var sim SimulationResponse
	if err := json.Unmarshal(res, &sim); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	if !sim.ReturnAmount.Eq(uint256.NewInt(332)) {
		t.Fatalf("expected simulated return 332, got %s", sim.ReturnAmount.Dec())
	}

	receipt, err := l.Execute(ctx, trader, addr, swapMsg(33_149, nil), types.Coins{types.NewCoinU64("uusd", 33_149)})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if got := receipt.Actions(); !reflect.DeepEqual(got, []string{"swap", "send"}) {
		t.Fatalf("unexpected actions %v", got)
	}
	got, _ := l.Balance(trader, "uluna")
	if !got.Eq(uint256.NewInt(332)) {
		t.Fatalf("expected 332 uluna, got %s", got.Dec())
	}
	paid, _ := l.Balance(trader, "uusd")
	if want := uint256.NewInt(20_000_000_000_000 - 33_149 - 33); !paid.Eq(want) {
		t.Fatalf("expected trader stable balance %s, got %s", want.Dec(), paid.Dec())
	}

	raw, _ = json.Marshal(QueryMsg{Pool: &PoolQuery{}})
	res, err = l.Query(ctx, addr, raw)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	var pool PoolResponse
	if err := json.Unmarshal(res, &pool); err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	if !pool.Assets[0].Amount.Eq(uint256.NewInt(1_000_000_000_000-332)) ||
		!pool.Assets[1].Amount.Eq(uint256.NewInt(100_000_000_000_000+33_149)) {
		t.Fatalf("unexpected pool %+v", pool)
	}
}

func TestSwapRejectsMismatchedFunds(t *testing.T) {
	l, addr := newPool(t)
	_, err := l.Execute(context.Background(), trader, addr, swapMsg(1000, nil), types.Coins{types.NewCoinU64("uusd", 999)})
	if !errors.Is(err, ErrInvalidOffer) {
		t.Fatalf("expected invalid offer, got %v", err)
	}
}

func TestSwapEnforcesMaxSpread(t *testing.T) {
	l, addr := newPool(t)
	maxSpread := types.MustParseDecimal("0.01")
	offer := uint64(10_000_000_000_000)
	_, err := l.Execute(context.Background(), trader, addr, swapMsg(offer, &maxSpread), types.Coins{types.NewCoinU64("uusd", offer)})
	if !errors.Is(err, ErrMaxSpread) {
		t.Fatalf("expected max spread error, got %v", err)
	}
	loose := types.MustParseDecimal("0.1")
	if _, err := l.Execute(context.Background(), trader, addr, swapMsg(offer, &loose), types.Coins{types.NewCoinU64("uusd", offer)}); err != nil {
		t.Fatalf("swap within spread: %v", err)
	}
}

func TestProvideLiquidity(t *testing.T) {
	l, addr := newPool(t)
	raw, _ := json.Marshal(ExecuteMsg{ProvideLiquidity: &ProvideLiquidityMsg{}})
	if _, err := l.Execute(context.Background(), trader, addr, raw, types.Coins{types.NewCoinU64("uusd", 1_000)}); err != nil {
		t.Fatalf("provide: %v", err)
	}
	held, _ := l.Balance(addr, "uusd")
	if !held.Eq(uint256.NewInt(100_000_000_001_000)) {
		t.Fatalf("unexpected reserve %s", held.Dec())
	}
}

func TestComputeSwap(t *testing.T) {
	res, err := ComputeSwap(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(100), types.MustParseDecimal("0.1"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !res.ReturnAmount.Eq(uint256.NewInt(82)) || !res.SpreadAmount.Eq(uint256.NewInt(9)) || !res.CommissionAmount.Eq(uint256.NewInt(9)) {
		t.Fatalf("unexpected result return=%s spread=%s commission=%s",
			res.ReturnAmount.Dec(), res.SpreadAmount.Dec(), res.CommissionAmount.Dec())
	}
	if _, err := ComputeSwap(new(uint256.Int), uint256.NewInt(1), uint256.NewInt(1), types.Decimal{}); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}
