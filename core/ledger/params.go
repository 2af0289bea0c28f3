package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// Params control bank taxation, call tree limits and block production.
type Params struct {
	ChainID string
	// TaxRate is charged to the sender on top of every non-exempt transfer.
	TaxRate types.Decimal
	// TaxCaps bounds the tax per transfer by denomination. Absent denominations
	// are uncapped.
	TaxCaps      map[string]*uint256.Int
	TaxExempt    []string
	TaxCollector crypto.Address
	// MaxCalls bounds the number of calls delivered by one transaction,
	// including the entry call.
	MaxCalls      int
	MaxDepth      int
	BlockInterval time.Duration
	GenesisTime   time.Time
}

// DefaultParams mirror a columbus-style chain: 0.1% stability tax on uusd capped
// at 1.4 UST, uluna exempt.
func DefaultParams() Params {
	return Params{
		ChainID:       "leverage-devnet-1",
		TaxRate:       types.DecimalPermille(1),
		TaxCaps:       map[string]*uint256.Int{"uusd": uint256.NewInt(1_400_000)},
		TaxExempt:     []string{"uluna"},
		TaxCollector:  crypto.AccountAddress(crypto.AccountPrefix, "tax-collector"),
		MaxCalls:      1024,
		MaxDepth:      128,
		BlockInterval: 6 * time.Second,
		GenesisTime:   time.Unix(1_600_000_000, 0).UTC(),
	}
}

func (p *Params) normalize() error {
	defaults := DefaultParams()
	p.ChainID = strings.TrimSpace(p.ChainID)
	if p.ChainID == "" {
		p.ChainID = defaults.ChainID
	}
	if p.TaxCollector.IsZero() {
		p.TaxCollector = defaults.TaxCollector
	}
	if p.MaxCalls <= 0 {
		p.MaxCalls = defaults.MaxCalls
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = defaults.MaxDepth
	}
	if p.BlockInterval <= 0 {
		p.BlockInterval = defaults.BlockInterval
	}
	if p.GenesisTime.IsZero() {
		p.GenesisTime = defaults.GenesisTime
	}
	if p.TaxRate.Cmp(types.DecimalOne()) >= 0 {
		return fmt.Errorf("ledger: tax rate %s must be below 1", p.TaxRate)
	}
	return nil
}

func (p Params) exempt(denom string) bool {
	for _, d := range p.TaxExempt {
		if d == denom {
			return true
		}
	}
	return false
}

// taxCap returns the cap for denom, or the maximum amount when uncapped.
func (p Params) taxCap(denom string) *uint256.Int {
	if c, ok := p.TaxCaps[denom]; ok && c != nil {
		return new(uint256.Int).Set(c)
	}
	return new(uint256.Int).SetAllOne()
}

// Tax returns the amount charged to the sender for transferring amount of denom.
func (p Params) Tax(denom string, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() || p.TaxRate.IsZero() || p.exempt(denom) {
		return new(uint256.Int), nil
	}
	tax, err := p.TaxRate.MulInt(amount)
	if err != nil {
		return nil, err
	}
	if limit := p.taxCap(denom); tax.Gt(limit) {
		tax = limit
	}
	return tax, nil
}

// DeductTax returns the part of gross a sender can transfer so that the
// transfer plus its tax fits in gross: gross − min(gross − gross/(1+rate), cap).
func DeductTax(gross *uint256.Int, rate types.Decimal, taxCap *uint256.Int) (*uint256.Int, error) {
	if gross == nil {
		return new(uint256.Int), nil
	}
	if rate.IsZero() {
		return new(uint256.Int).Set(gross), nil
	}
	denominator, overflow := new(uint256.Int).AddOverflow(types.DecimalFractional, rate.Atomics())
	if overflow {
		return nil, types.ErrDecimalOverflow
	}
	net, overflow := new(uint256.Int).MulDivOverflow(gross, types.DecimalFractional, denominator)
	if overflow {
		return nil, types.ErrDecimalOverflow
	}
	tax := new(uint256.Int).Sub(gross, net)
	if taxCap != nil && tax.Gt(taxCap) {
		tax.Set(taxCap)
	}
	return new(uint256.Int).Sub(gross, tax), nil
}
