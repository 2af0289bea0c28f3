package leverage

import (
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
)

const (
	// AcceptedDenom is the only coin Deposit takes.
	AcceptedDenom = "uluna"
	// StableDenom is borrowed from the market and offered to the pair.
	StableDenom = "uusd"
	// LTVPercent caps borrowing at this share of the overseer borrow limit.
	LTVPercent = 70
	// StopThresholdUnits ends the loop once a swap no longer exceeds it.
	StopThresholdUnits = 10_000_000

	slippageNumerator   = 998
	slippageDenominator = 1000
)

// StopThreshold returns StopThresholdUnits as an amount.
func StopThreshold() *uint256.Int {
	return uint256.NewInt(StopThresholdUnits)
}

// OppositeRatio returns 1/rate at 18 decimal places, rounded down.
func OppositeRatio(rate types.Decimal) (types.Decimal, error) {
	if rate.IsZero() {
		return types.Decimal{}, types.ErrDivideByZero
	}
	return types.DecimalFromRatio(types.DecimalFractional, rate.Atomics())
}

// PossibleBorrow returns floor(limit × ltvPercent / 100) − borrowed. It fails
// with ErrArithmeticUnderflow when borrowed exceeds the capped limit.
func PossibleBorrow(limit, borrowed *uint256.Int, ltvPercent uint64) (*uint256.Int, error) {
	capped, err := types.DecimalPercent(ltvPercent).MulInt(limit)
	if err != nil {
		return nil, err
	}
	if borrowed == nil {
		return capped, nil
	}
	amount, underflow := new(uint256.Int).SubOverflow(capped, borrowed)
	if underflow {
		return nil, fmt.Errorf("%w: borrowed %s exceeds capped limit %s", ErrArithmeticUnderflow, borrowed.Dec(), capped.Dec())
	}
	return amount, nil
}

// SwapAfterSlippage discounts amount by 0.2%, truncating.
func SwapAfterSlippage(amount *uint256.Int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	// The 512-bit intermediate product cannot overflow a result below amount.
	out, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(slippageNumerator), uint256.NewInt(slippageDenominator))
	return out
}

// ContinueLoop reports whether a swap of amount keeps the loop going.
func ContinueLoop(amount, threshold *uint256.Int) bool {
	if amount == nil || threshold == nil {
		return false
	}
	return amount.Gt(threshold)
}

// DeductTax is the Borrow step's tax adjustment: the stable amount that
// reaches the controller when the market lends gross.
func DeductTax(gross *uint256.Int, rate types.Decimal, taxCap *uint256.Int) (*uint256.Int, error) {
	return ledger.DeductTax(gross, rate, taxCap)
}
