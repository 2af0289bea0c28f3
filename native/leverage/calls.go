package leverage

import (
	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/hub"
	"leverageloop/native/moneymarket"
	"leverageloop/native/pair"
)

// bondCalls stakes coin with the preferred validator and schedules
// DepositCollateral once the derivative tokens are minted.
func bondCalls(cfg Config, self crypto.Address, coin types.Coin) ([]types.Call, error) {
	bond, err := types.NewExecuteCall(cfg.Hub, hub.ExecuteMsg{Bond: &hub.BondMsg{Validator: cfg.PreferredValidator}}, coin)
	if err != nil {
		return nil, err
	}
	next, err := selfCall(self, DepositCollateral{})
	if err != nil {
		return nil, err
	}
	return []types.Call{bond, next}, nil
}

// collateralCalls posts amount to custody, locks it with the overseer and
// schedules Borrow.
func collateralCalls(cfg Config, self crypto.Address, amount *uint256.Int) ([]types.Call, error) {
	deposit, err := types.NewExecuteCall(cfg.Custody, moneymarket.CustodyExecuteMsg{
		DepositCollateral: &moneymarket.DepositCollateralMsg{Token: cfg.Token, Amount: amount},
	})
	if err != nil {
		return nil, err
	}
	lock, err := types.NewExecuteCall(cfg.Overseer, moneymarket.OverseerExecuteMsg{
		LockCollateral: &moneymarket.LockCollateralMsg{
			Collaterals: []moneymarket.Collateral{{Custody: cfg.Custody, Amount: amount}},
		},
	})
	if err != nil {
		return nil, err
	}
	next, err := selfCall(self, Borrow{})
	if err != nil {
		return nil, err
	}
	return []types.Call{deposit, lock, next}, nil
}

// borrowCalls borrows gross from the market and schedules Swap for the net
// amount that arrives after tax.
func borrowCalls(cfg Config, self crypto.Address, gross, net *uint256.Int) ([]types.Call, error) {
	borrow, err := types.NewExecuteCall(cfg.Market, moneymarket.MarketExecuteMsg{
		BorrowStable: &moneymarket.BorrowStableMsg{BorrowAmount: gross},
	})
	if err != nil {
		return nil, err
	}
	next, err := selfCall(self, Swap{Amount: net})
	if err != nil {
		return nil, err
	}
	return []types.Call{borrow, next}, nil
}

// swapCall offers amount of the stable denomination to the pair.
func swapCall(cfg Config, amount *uint256.Int) (types.Call, error) {
	return types.NewExecuteCall(cfg.Pair, pair.ExecuteMsg{
		Swap: &pair.SwapMsg{OfferAsset: pair.Asset{Amount: amount, Denom: StableDenom}},
	}, types.NewCoin(StableDenom, amount))
}

func selfCall(self crypto.Address, cmd Command) (types.Call, error) {
	return types.NewExecuteCall(self, EncodeCommand(cmd))
}
