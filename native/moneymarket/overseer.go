package moneymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

type storedOverseer struct {
	Creator []byte
	Custody []byte
	Price   *big.Int
	MaxLTV  *big.Int
}

type overseerConfig struct {
	creator crypto.Address
	custody crypto.Address
	price   types.Decimal
	maxLTV  types.Decimal
}

var _ ledger.Contract = (*Overseer)(nil)

// Overseer tracks locked collateral and derives borrow limits from it.
type Overseer struct{}

func NewOverseer() *Overseer { return &Overseer{} }

func lockedKey(borrower crypto.Address) []byte { return nativecommon.Key("locked", borrower) }

func (o *Overseer) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var init OverseerInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("overseer: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Custody.IsZero() {
		return nil, fmt.Errorf("overseer: %w: custody required", nativecommon.ErrInvalidMsg)
	}
	if init.MaxLTV.Cmp(types.DecimalOne()) > 0 {
		return nil, fmt.Errorf("overseer: %w: max_ltv above one", nativecommon.ErrInvalidMsg)
	}
	cfg := overseerConfig{creator: info.Sender, custody: init.Custody, price: init.Price, maxLTV: init.MaxLTV}
	if err := saveOverseer(deps.Store, cfg); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("price", cfg.price.String()).
		AddAttribute("max_ltv", cfg.maxLTV.String()), nil
}

func (o *Overseer) Execute(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec OverseerExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("overseer: %w", err)
	}
	cfg, err := loadOverseer(deps.Store)
	if err != nil {
		return nil, err
	}
	switch {
	case exec.LockCollateral != nil:
		if len(exec.LockCollateral.Collaterals) == 0 {
			return nil, fmt.Errorf("overseer: %w: no collaterals", nativecommon.ErrInvalidMsg)
		}
		resp := types.NewResponse().
			AddAttribute("action", "lock_collateral").
			AddAttribute("borrower", info.Sender.String())
		for _, c := range exec.LockCollateral.Collaterals {
			if !c.Custody.Equal(cfg.custody) {
				return nil, fmt.Errorf("%w: custody %s", ErrUnsupportedCollateral, c.Custody)
			}
			if err := positive(c.Amount); err != nil {
				return nil, err
			}
			if _, err := nativecommon.AddAmount(deps.Store, lockedKey(info.Sender), c.Amount); err != nil {
				return nil, err
			}
			lock, err := types.NewExecuteCall(cfg.custody, CustodyExecuteMsg{
				LockCollateral: &CustodyLockMsg{Borrower: info.Sender, Amount: c.Amount},
			})
			if err != nil {
				return nil, err
			}
			resp.AddCall(lock).AddAttribute("collateral", c.Amount.Dec())
		}
		return resp, nil
	case exec.UpdatePrice != nil:
		if !info.Sender.Equal(cfg.creator) {
			return nil, fmt.Errorf("overseer: update_price: %w", nativecommon.ErrUnauthorized)
		}
		cfg.price = exec.UpdatePrice.Price
		if err := saveOverseer(deps.Store, cfg); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "update_price").
			AddAttribute("price", cfg.price.String()), nil
	default:
		return nil, fmt.Errorf("overseer: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
}

func (o *Overseer) Query(_ context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q OverseerQueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("overseer: %w", err)
	}
	if q.BorrowLimit == nil {
		return nil, fmt.Errorf("overseer: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
	cfg, err := loadOverseer(deps.Store)
	if err != nil {
		return nil, err
	}
	locked, err := nativecommon.GetAmount(deps.Store, lockedKey(q.BorrowLimit.Borrower))
	if err != nil {
		return nil, err
	}
	limit, err := BorrowLimit(locked, cfg.price, cfg.maxLTV)
	if err != nil {
		return nil, err
	}
	return json.Marshal(BorrowLimitResponse{Borrower: q.BorrowLimit.Borrower, BorrowLimit: limit})
}

// BorrowLimit values locked collateral at price and applies maxLTV, rounding
// down at each step.
func BorrowLimit(locked *uint256.Int, price, maxLTV types.Decimal) (*uint256.Int, error) {
	value, err := price.MulInt(locked)
	if err != nil {
		return nil, err
	}
	return maxLTV.MulInt(value)
}

func saveOverseer(store ledger.KVStore, cfg overseerConfig) error {
	return nativecommon.PutRLP(store, configKey, storedOverseer{
		Creator: cfg.creator.Bytes(),
		Custody: cfg.custody.Bytes(),
		Price:   cfg.price.Atomics().ToBig(),
		MaxLTV:  cfg.maxLTV.Atomics().ToBig(),
	})
}

func loadOverseer(store ledger.KVStore) (overseerConfig, error) {
	var stored storedOverseer
	ok, err := nativecommon.GetRLP(store, configKey, &stored)
	if err != nil {
		return overseerConfig{}, err
	}
	if !ok {
		return overseerConfig{}, ErrNotInstantiated
	}
	creator, err := crypto.NewAddress(crypto.AccountPrefix, stored.Creator)
	if err != nil {
		return overseerConfig{}, fmt.Errorf("overseer: creator: %w", err)
	}
	custody, err := crypto.NewAddress(crypto.AccountPrefix, stored.Custody)
	if err != nil {
		return overseerConfig{}, fmt.Errorf("overseer: custody: %w", err)
	}
	price, overflow := uint256.FromBig(stored.Price)
	if overflow {
		return overseerConfig{}, types.ErrDecimalOverflow
	}
	maxLTV, overflow := uint256.FromBig(stored.MaxLTV)
	if overflow {
		return overseerConfig{}, types.ErrDecimalOverflow
	}
	return overseerConfig{
		creator: creator,
		custody: custody,
		price:   types.NewDecimalFromAtomics(price),
		maxLTV:  types.NewDecimalFromAtomics(maxLTV),
	}, nil
}
