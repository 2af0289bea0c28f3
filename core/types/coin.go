package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Coin is an amount of a native denomination expressed in its minimum unit.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin copies amount into a coin of denom.
func NewCoin(denom string, amount *uint256.Int) Coin {
	value := new(uint256.Int)
	if amount != nil {
		value.Set(amount)
	}
	return Coin{Denom: strings.TrimSpace(denom), Amount: value}
}

// NewCoinU64 is NewCoin for small literals.
func NewCoinU64(denom string, amount uint64) Coin {
	return NewCoin(denom, uint256.NewInt(amount))
}

func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

func (c Coin) String() string {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.Dec()
	}
	return amount + c.Denom
}

// Coins is an ordered list of coins. Denominations are expected to be unique.
type Coins []Coin

// AmountOf returns the amount held in denom, zero when absent.
func (cs Coins) AmountOf(denom string) *uint256.Int {
	for _, c := range cs {
		if c.Denom == denom && c.Amount != nil {
			return new(uint256.Int).Set(c.Amount)
		}
	}
	return new(uint256.Int)
}

// Clone returns a deep copy.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	out := make(Coins, len(cs))
	for i, c := range cs {
		out[i] = NewCoin(c.Denom, c.Amount)
	}
	return out
}

// Validate rejects empty denominations, nil amounts and duplicates.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if c.Denom == "" {
			return fmt.Errorf("coin denomination required")
		}
		if c.Amount == nil {
			return fmt.Errorf("coin %s: amount required", c.Denom)
		}
		if _, dup := seen[c.Denom]; dup {
			return fmt.Errorf("duplicate coin denomination %s", c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}
