package moneymarket

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// CustodyInstantiateMsg binds custody to its collateral token and overseer.
type CustodyInstantiateMsg struct {
	Token    crypto.Address `json:"token"`
	Overseer crypto.Address `json:"overseer"`
}

// CustodyExecuteMsg is the tagged union of custody commands.
type CustodyExecuteMsg struct {
	DepositCollateral *DepositCollateralMsg `json:"deposit_collateral,omitempty"`
	LockCollateral    *CustodyLockMsg       `json:"lock_collateral,omitempty"`
}

// DepositCollateralMsg pulls amount of token from the sender into custody.
type DepositCollateralMsg struct {
	Token  crypto.Address `json:"token"`
	Amount *uint256.Int   `json:"amount"`
}

// CustodyLockMsg is sent by the overseer to move spendable collateral into the
// locked bucket.
type CustodyLockMsg struct {
	Borrower crypto.Address `json:"borrower"`
	Amount   *uint256.Int   `json:"amount"`
}

// CustodyQueryMsg is the tagged union of custody queries.
type CustodyQueryMsg struct {
	Borrower *BorrowerQuery `json:"borrower,omitempty"`
}

type BorrowerQuery struct {
	Address crypto.Address `json:"address"`
}

// BorrowerResponse is the custody collateral snapshot for a borrower.
type BorrowerResponse struct {
	Borrower  crypto.Address `json:"borrower"`
	Balance   *uint256.Int   `json:"balance"`
	Spendable *uint256.Int   `json:"spendable"`
}

// OverseerInstantiateMsg configures collateral whitelisting and pricing.
type OverseerInstantiateMsg struct {
	Custody crypto.Address `json:"custody"`
	// Price is the value of one collateral unit in stable units.
	Price types.Decimal `json:"price"`
	// MaxLTV bounds the borrow limit as a fraction of collateral value.
	MaxLTV types.Decimal `json:"max_ltv"`
}

// OverseerExecuteMsg is the tagged union of overseer commands.
type OverseerExecuteMsg struct {
	LockCollateral *LockCollateralMsg `json:"lock_collateral,omitempty"`
	UpdatePrice    *UpdatePriceMsg    `json:"update_price,omitempty"`
}

// LockCollateralMsg locks deposited collateral of the sender.
type LockCollateralMsg struct {
	Collaterals []Collateral `json:"collaterals"`
}

// UpdatePriceMsg is restricted to the overseer creator.
type UpdatePriceMsg struct {
	Price types.Decimal `json:"price"`
}

// Collateral is a (custody, amount) pair encoded as a two element array.
type Collateral struct {
	Custody crypto.Address
	Amount  *uint256.Int
}

func (c Collateral) MarshalJSON() ([]byte, error) {
	amount := c.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	return json.Marshal([2]string{c.Custody.String(), amount.Dec()})
}

func (c *Collateral) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("collateral: %w", err)
	}
	custody, err := crypto.DecodeAddress(pair[0])
	if err != nil {
		return fmt.Errorf("collateral custody: %w", err)
	}
	amount, err := uint256.FromDecimal(pair[1])
	if err != nil {
		return fmt.Errorf("collateral amount %q: %w", pair[1], err)
	}
	c.Custody = custody
	c.Amount = amount
	return nil
}

// OverseerQueryMsg is the tagged union of overseer queries.
type OverseerQueryMsg struct {
	BorrowLimit *BorrowLimitQuery `json:"borrow_limit,omitempty"`
}

type BorrowLimitQuery struct {
	Borrower  crypto.Address `json:"borrower"`
	BlockTime *uint64        `json:"block_time,omitempty"`
}

type BorrowLimitResponse struct {
	Borrower    crypto.Address `json:"borrower"`
	BorrowLimit *uint256.Int   `json:"borrow_limit"`
}

// MarketInstantiateMsg configures the lending market.
type MarketInstantiateMsg struct {
	Overseer    crypto.Address `json:"overseer"`
	StableDenom string         `json:"stable_denom"`
}

// MarketExecuteMsg is the tagged union of market commands.
type MarketExecuteMsg struct {
	BorrowStable *BorrowStableMsg `json:"borrow_stable,omitempty"`
}

// BorrowStableMsg borrows stable coins against locked collateral. The borrower
// receives the amount net of the transfer tax.
type BorrowStableMsg struct {
	BorrowAmount *uint256.Int    `json:"borrow_amount"`
	To           *crypto.Address `json:"to,omitempty"`
}

// MarketQueryMsg is the tagged union of market queries.
type MarketQueryMsg struct {
	BorrowerInfo *BorrowerInfoQuery `json:"borrower_info,omitempty"`
	State        *MarketStateQuery  `json:"state,omitempty"`
}

type BorrowerInfoQuery struct {
	Borrower    crypto.Address `json:"borrower"`
	BlockHeight *uint64        `json:"block_height,omitempty"`
}

type BorrowerInfoResponse struct {
	Borrower   crypto.Address `json:"borrower"`
	LoanAmount *uint256.Int   `json:"loan_amount"`
}

type MarketStateQuery struct{}

type MarketStateResponse struct {
	TotalLiabilities *uint256.Int `json:"total_liabilities"`
}
