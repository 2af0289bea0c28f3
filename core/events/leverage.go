package events

import (
	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

const (
	// TypeLeverageDeposited is emitted when native coins are sent to the hub to bond.
	TypeLeverageDeposited = "leverage.deposited"
	// TypeLeverageCollateralized is emitted when the derivative balance is posted and locked.
	TypeLeverageCollateralized = "leverage.collateralized"
	// TypeLeverageBorrowed is emitted when a stable borrow is requested.
	TypeLeverageBorrowed = "leverage.borrowed"
	// TypeLeverageSwapped is emitted when borrowed stable coins are offered to the pair.
	TypeLeverageSwapped = "leverage.swapped"
	// TypeLeverageStopped marks the terminal step of a cycle.
	TypeLeverageStopped = "leverage.stopped"

	// SourceDeposit tags a bond that originated from an external deposit.
	SourceDeposit = "deposit"
	// SourceRedeposit tags a bond funded by swap proceeds.
	SourceRedeposit = "redeposit"
)

// LeverageDeposited captures a bond issued to the staking hub.
type LeverageDeposited struct {
	Contract  crypto.Address
	Sender    crypto.Address
	Amount    *uint256.Int
	Denom     string
	Validator string
	Source    string
}

// EventType satisfies the Event interface.
func (LeverageDeposited) EventType() string { return TypeLeverageDeposited }

// Event converts the structured payload into a broadcastable event.
func (e LeverageDeposited) Event() *types.Event {
	attrs := map[string]string{
		"contract":  e.Contract.String(),
		"amount":    formatAmount(e.Amount),
		"denom":     e.Denom,
		"validator": e.Validator,
		"source":    e.Source,
		"phase":     "deposited",
	}
	if !e.Sender.IsZero() {
		attrs["sender"] = e.Sender.String()
	}
	return &types.Event{Type: TypeLeverageDeposited, Attributes: attrs}
}

// LeverageCollateralized captures a derivative balance posted to custody.
type LeverageCollateralized struct {
	Contract crypto.Address
	Token    crypto.Address
	Custody  crypto.Address
	Amount   *uint256.Int
}

// EventType satisfies the Event interface.
func (LeverageCollateralized) EventType() string { return TypeLeverageCollateralized }

// Event converts the structured payload into a broadcastable event.
func (e LeverageCollateralized) Event() *types.Event {
	return &types.Event{Type: TypeLeverageCollateralized, Attributes: map[string]string{
		"contract": e.Contract.String(),
		"token":    e.Token.String(),
		"custody":  e.Custody.String(),
		"amount":   formatAmount(e.Amount),
		"phase":    "collateralized",
	}}
}

// LeverageBorrowed captures the borrow capacity used by a Borrow step.
type LeverageBorrowed struct {
	Contract        crypto.Address
	BorrowLimit     *uint256.Int
	AlreadyBorrowed *uint256.Int
	Gross           *uint256.Int
	Net             *uint256.Int
}

// EventType satisfies the Event interface.
func (LeverageBorrowed) EventType() string { return TypeLeverageBorrowed }

// Event converts the structured payload into a broadcastable event.
func (e LeverageBorrowed) Event() *types.Event {
	return &types.Event{Type: TypeLeverageBorrowed, Attributes: map[string]string{
		"contract":         e.Contract.String(),
		"borrow_limit":     formatAmount(e.BorrowLimit),
		"already_borrowed": formatAmount(e.AlreadyBorrowed),
		"gross":            formatAmount(e.Gross),
		"net":              formatAmount(e.Net),
		"phase":            "borrowed",
	}}
}

// LeverageSwapped captures the stable amount offered to the pair and whether
// the loop continues.
type LeverageSwapped struct {
	Contract   crypto.Address
	Received   *uint256.Int
	SwapAmount *uint256.Int
	Continue   bool
}

// EventType satisfies the Event interface.
func (LeverageSwapped) EventType() string { return TypeLeverageSwapped }

// Event converts the structured payload into a broadcastable event.
func (e LeverageSwapped) Event() *types.Event {
	phase := "swapped"
	if !e.Continue {
		phase = "stopped"
	}
	return &types.Event{Type: TypeLeverageSwapped, Attributes: map[string]string{
		"contract":    e.Contract.String(),
		"received":    formatAmount(e.Received),
		"swap_amount": formatAmount(e.SwapAmount),
		"continue":    formatBool(e.Continue),
		"phase":       phase,
	}}
}

// LeverageStopped is emitted once per cycle when no further self-call is issued.
type LeverageStopped struct {
	Contract crypto.Address
	Step     string
	Reason   string
}

// EventType satisfies the Event interface.
func (LeverageStopped) EventType() string { return TypeLeverageStopped }

// Event converts the structured payload into a broadcastable event.
func (e LeverageStopped) Event() *types.Event {
	return &types.Event{Type: TypeLeverageStopped, Attributes: map[string]string{
		"contract": e.Contract.String(),
		"step":     e.Step,
		"reason":   e.Reason,
		"phase":    "stopped",
	}}
}
