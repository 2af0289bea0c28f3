package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

var ErrInsufficientTokens = errors.New("token: insufficient balance")

var (
	tokenInfoKey   = []byte("token_info")
	totalSupplyKey = []byte("total_supply")
)

type storedToken struct {
	Name      string
	Symbol    string
	Decimals  uint8
	Minter    []byte
	Operators [][]byte
}

type tokenInfo struct {
	name      string
	symbol    string
	decimals  uint8
	minter    crypto.Address
	operators []crypto.Address
}

var _ ledger.Contract = (*Token)(nil)

// Token is the fungible derivative minted by the hub. Only the minter can
// issue supply and only operators can move tokens on an owner's behalf.
type Token struct{}

func NewToken() *Token { return &Token{} }

func balanceKey(addr crypto.Address) []byte { return nativecommon.Key("balance", addr) }

func (t *Token) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, _ types.MessageInfo, msg []byte) (*types.Response, error) {
	var init TokenInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("token: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Minter.IsZero() || init.Symbol == "" {
		return nil, fmt.Errorf("token: %w: minter and symbol required", nativecommon.ErrInvalidMsg)
	}
	err := nativecommon.PutRLP(deps.Store, tokenInfoKey, storedToken{
		Name:      init.Name,
		Symbol:    init.Symbol,
		Decimals:  init.Decimals,
		Minter:    init.Minter.Bytes(),
		Operators: nativecommon.AddressBytes(init.Operators),
	})
	if err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("symbol", init.Symbol), nil
}

func (t *Token) Execute(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec TokenExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	meta, err := loadTokenInfo(deps.Store)
	if err != nil {
		return nil, err
	}
	switch {
	case exec.Mint != nil:
		if !info.Sender.Equal(meta.minter) {
			return nil, fmt.Errorf("token: mint: %w", nativecommon.ErrUnauthorized)
		}
		if err := requireAmount(exec.Mint.Amount); err != nil {
			return nil, err
		}
		if _, err := nativecommon.AddAmount(deps.Store, totalSupplyKey, exec.Mint.Amount); err != nil {
			return nil, err
		}
		if _, err := nativecommon.AddAmount(deps.Store, balanceKey(exec.Mint.Recipient), exec.Mint.Amount); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "mint").
			AddAttribute("to", exec.Mint.Recipient.String()).
			AddAttribute("amount", exec.Mint.Amount.Dec()), nil
	case exec.Transfer != nil:
		m := exec.Transfer
		if err := move(deps.Store, info.Sender, m.Recipient, m); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "transfer").
			AddAttribute("from", info.Sender.String()).
			AddAttribute("to", m.Recipient.String()).
			AddAttribute("amount", m.Amount.Dec()), nil
	case exec.TransferFrom != nil:
		m := exec.TransferFrom
		if !nativecommon.Contains(meta.operators, info.Sender) {
			return nil, fmt.Errorf("token: transfer_from: %w", nativecommon.ErrUnauthorized)
		}
		if err := move(deps.Store, m.Owner, m.Recipient, &TransferMsg{Recipient: m.Recipient, Amount: m.Amount}); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "transfer_from").
			AddAttribute("from", m.Owner.String()).
			AddAttribute("to", m.Recipient.String()).
			AddAttribute("by", info.Sender.String()).
			AddAttribute("amount", m.Amount.Dec()), nil
	default:
		return nil, fmt.Errorf("token: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
}

func move(store ledger.KVStore, from, to crypto.Address, m *TransferMsg) error {
	if err := requireAmount(m.Amount); err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("token: %w: recipient required", nativecommon.ErrInvalidMsg)
	}
	if _, err := nativecommon.SubAmount(store, balanceKey(from), m.Amount, ErrInsufficientTokens); err != nil {
		return err
	}
	_, err := nativecommon.AddAmount(store, balanceKey(to), m.Amount)
	return err
}

func requireAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("token: %w: amount must be positive", nativecommon.ErrInvalidMsg)
	}
	return nil
}

func (t *Token) Query(_ context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q TokenQueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	switch {
	case q.Balance != nil:
		balance, err := nativecommon.GetAmount(deps.Store, balanceKey(q.Balance.Address))
		if err != nil {
			return nil, err
		}
		return json.Marshal(BalanceResponse{Balance: balance})
	case q.TokenInfo != nil:
		meta, err := loadTokenInfo(deps.Store)
		if err != nil {
			return nil, err
		}
		supply, err := nativecommon.GetAmount(deps.Store, totalSupplyKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(TokenInfoResponse{
			Name:        meta.name,
			Symbol:      meta.symbol,
			Decimals:    meta.decimals,
			TotalSupply: supply,
		})
	default:
		return nil, fmt.Errorf("token: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
}

func loadTokenInfo(store ledger.KVStore) (tokenInfo, error) {
	var stored storedToken
	ok, err := nativecommon.GetRLP(store, tokenInfoKey, &stored)
	if err != nil {
		return tokenInfo{}, err
	}
	if !ok {
		return tokenInfo{}, errors.New("token: not instantiated")
	}
	minter, err := crypto.NewAddress(crypto.AccountPrefix, stored.Minter)
	if err != nil {
		return tokenInfo{}, fmt.Errorf("token: minter: %w", err)
	}
	operators, err := nativecommon.Addresses(crypto.AccountPrefix, stored.Operators)
	if err != nil {
		return tokenInfo{}, fmt.Errorf("token: operators: %w", err)
	}
	return tokenInfo{
		name:      stored.Name,
		symbol:    stored.Symbol,
		decimals:  stored.Decimals,
		minter:    minter,
		operators: operators,
	}, nil
}
