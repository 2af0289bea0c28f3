package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

func balanceKey(addr crypto.Address, denom string) []byte {
	return []byte("bank/" + addr.String() + "/" + denom)
}

// bank moves native coins inside a store. Amounts are RLP-encoded big
// integers.
type bank struct {
	store  KVStore
	params Params
}

func (b bank) balance(addr crypto.Address, denom string) (*uint256.Int, error) {
	data, ok, err := b.store.Get(balanceKey(addr, denom))
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return new(uint256.Int), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, fmt.Errorf("decode balance %s/%s: %w", addr, denom, err)
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("balance %s/%s overflows 256 bits", addr, denom)
	}
	return value, nil
}

func (b bank) setBalance(addr crypto.Address, denom string, amount *uint256.Int) error {
	if addr.IsZero() {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil || amount.IsZero() {
		return b.store.Delete(balanceKey(addr, denom))
	}
	encoded, err := rlp.EncodeToBytes(amount.ToBig())
	if err != nil {
		return err
	}
	return b.store.Set(balanceKey(addr, denom), encoded)
}

func (b bank) credit(addr crypto.Address, coin types.Coin) error {
	if coin.IsZero() {
		return nil
	}
	current, err := b.balance(addr, coin.Denom)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, coin.Amount)
	if overflow {
		return fmt.Errorf("credit %s to %s overflows", coin, addr)
	}
	return b.setBalance(addr, coin.Denom, next)
}

func (b bank) debit(addr crypto.Address, coin types.Coin) error {
	if coin.IsZero() {
		return nil
	}
	current, err := b.balance(addr, coin.Denom)
	if err != nil {
		return err
	}
	if current.Lt(coin.Amount) {
		return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, addr, current.Dec(), coin.Denom, coin)
	}
	return b.setBalance(addr, coin.Denom, new(uint256.Int).Sub(current, coin.Amount))
}

// transfer moves coins from one account to another, charging the sender the
// stability tax on top of each non-exempt coin. It returns the taxes paid.
func (b bank) transfer(from, to crypto.Address, coins types.Coins) (types.Coins, error) {
	if err := coins.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	if to.IsZero() {
		return nil, fmt.Errorf("%w: empty recipient", ErrInvalidCall)
	}
	var taxes types.Coins
	for _, coin := range coins {
		if coin.IsZero() {
			continue
		}
		tax, err := b.params.Tax(coin.Denom, coin.Amount)
		if err != nil {
			return nil, err
		}
		total, overflow := new(uint256.Int).AddOverflow(coin.Amount, tax)
		if overflow {
			return nil, fmt.Errorf("transfer %s with tax overflows", coin)
		}
		if err := b.debit(from, types.NewCoin(coin.Denom, total)); err != nil {
			return nil, err
		}
		if err := b.credit(to, coin); err != nil {
			return nil, err
		}
		if !tax.IsZero() {
			taxCoin := types.NewCoin(coin.Denom, tax)
			if err := b.credit(b.params.TaxCollector, taxCoin); err != nil {
				return nil, err
			}
			taxes = append(taxes, taxCoin)
		}
	}
	return taxes, nil
}
