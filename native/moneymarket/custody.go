package moneymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/hub"
	nativecommon "leverageloop/native/common"
)

var (
	ErrUnsupportedCollateral  = errors.New("moneymarket: unsupported collateral")
	ErrInsufficientCollateral = errors.New("moneymarket: insufficient spendable collateral")
	ErrBorrowExceedsLimit     = errors.New("moneymarket: borrow amount exceeds borrow limit")
	ErrNotInstantiated        = errors.New("moneymarket: not instantiated")
)

var configKey = []byte("config")

type storedCustody struct {
	Token    []byte
	Overseer []byte
}

var _ ledger.Contract = (*Custody)(nil)

// Custody holds deposited collateral tokens per borrower. Deposited tokens are
// spendable until the overseer locks them.
type Custody struct{}

func NewCustody() *Custody { return &Custody{} }

func (c *Custody) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, _ types.MessageInfo, msg []byte) (*types.Response, error) {
	var init CustodyInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("custody: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Token.IsZero() || init.Overseer.IsZero() {
		return nil, fmt.Errorf("custody: %w: token and overseer required", nativecommon.ErrInvalidMsg)
	}
	if err := nativecommon.PutRLP(deps.Store, configKey, storedCustody{
		Token:    init.Token.Bytes(),
		Overseer: init.Overseer.Bytes(),
	}); err != nil {
		return nil, err
	}
	return types.NewResponse().AddAttribute("action", "instantiate"), nil
}

func (c *Custody) Execute(_ context.Context, deps ledger.Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec CustodyExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("custody: %w", err)
	}
	token, overseer, err := loadCustody(deps.Store)
	if err != nil {
		return nil, err
	}
	switch {
	case exec.DepositCollateral != nil:
		m := exec.DepositCollateral
		if !m.Token.Equal(token) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCollateral, m.Token)
		}
		if err := positive(m.Amount); err != nil {
			return nil, err
		}
		if _, err := nativecommon.AddAmount(deps.Store, nativecommon.Key("balance", info.Sender), m.Amount); err != nil {
			return nil, err
		}
		if _, err := nativecommon.AddAmount(deps.Store, nativecommon.Key("spendable", info.Sender), m.Amount); err != nil {
			return nil, err
		}
		pull, err := types.NewExecuteCall(token, hub.TokenExecuteMsg{
			TransferFrom: &hub.TransferFromMsg{Owner: info.Sender, Recipient: env.Contract.Address, Amount: m.Amount},
		})
		if err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddCall(pull).
			AddAttribute("action", "deposit_collateral").
			AddAttribute("borrower", info.Sender.String()).
			AddAttribute("amount", m.Amount.Dec()), nil
	case exec.LockCollateral != nil:
		m := exec.LockCollateral
		if !info.Sender.Equal(overseer) {
			return nil, fmt.Errorf("custody: lock_collateral: %w", nativecommon.ErrUnauthorized)
		}
		if err := positive(m.Amount); err != nil {
			return nil, err
		}
		if _, err := nativecommon.SubAmount(deps.Store, nativecommon.Key("spendable", m.Borrower), m.Amount, ErrInsufficientCollateral); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "lock_collateral").
			AddAttribute("borrower", m.Borrower.String()).
			AddAttribute("amount", m.Amount.Dec()), nil
	default:
		return nil, fmt.Errorf("custody: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
}

func (c *Custody) Query(_ context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q CustodyQueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("custody: %w", err)
	}
	if q.Borrower == nil {
		return nil, fmt.Errorf("custody: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
	borrower := q.Borrower.Address
	balance, err := nativecommon.GetAmount(deps.Store, nativecommon.Key("balance", borrower))
	if err != nil {
		return nil, err
	}
	spendable, err := nativecommon.GetAmount(deps.Store, nativecommon.Key("spendable", borrower))
	if err != nil {
		return nil, err
	}
	return json.Marshal(BorrowerResponse{Borrower: borrower, Balance: balance, Spendable: spendable})
}

func loadCustody(store ledger.KVStore) (token, overseer crypto.Address, err error) {
	var stored storedCustody
	ok, err := nativecommon.GetRLP(store, configKey, &stored)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, crypto.Address{}, ErrNotInstantiated
	}
	if token, err = crypto.NewAddress(crypto.AccountPrefix, stored.Token); err != nil {
		return crypto.Address{}, crypto.Address{}, fmt.Errorf("custody: token: %w", err)
	}
	if overseer, err = crypto.NewAddress(crypto.AccountPrefix, stored.Overseer); err != nil {
		return crypto.Address{}, crypto.Address{}, fmt.Errorf("custody: overseer: %w", err)
	}
	return token, overseer, nil
}

func positive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("moneymarket: %w: amount must be positive", nativecommon.ErrInvalidMsg)
	}
	return nil
}
