package leverage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/moneymarket"
)

// Config names the collaborating contracts and the validator bonds are
// delegated to. It is stored once at instantiation and never changes.
type Config struct {
	Hub                crypto.Address `json:"hub" toml:"hub"`
	Token              crypto.Address `json:"token" toml:"token"`
	Custody            crypto.Address `json:"custody" toml:"custody"`
	Overseer           crypto.Address `json:"overseer" toml:"overseer"`
	Market             crypto.Address `json:"market" toml:"market"`
	Pair               crypto.Address `json:"pair" toml:"pair"`
	PreferredValidator crypto.Address `json:"preferred_validator" toml:"preferred_validator"`
}

// Validate checks every address is present with the expected prefix.
func (c Config) Validate() error {
	contracts := []struct {
		name string
		addr crypto.Address
	}{
		{"hub", c.Hub},
		{"token", c.Token},
		{"custody", c.Custody},
		{"overseer", c.Overseer},
		{"market", c.Market},
		{"pair", c.Pair},
	}
	for _, contract := range contracts {
		if contract.addr.IsZero() {
			return fmt.Errorf("%w: %s address required", ErrInvalidConfig, contract.name)
		}
		if contract.addr.Prefix() != crypto.AccountPrefix {
			return fmt.Errorf("%w: %s address %s must use prefix %s", ErrInvalidConfig, contract.name, contract.addr, crypto.AccountPrefix)
		}
	}
	if c.PreferredValidator.IsZero() {
		return fmt.Errorf("%w: preferred validator required", ErrInvalidConfig)
	}
	if c.PreferredValidator.Prefix() != crypto.ValidatorPrefix {
		return fmt.Errorf("%w: preferred validator %s must use prefix %s", ErrInvalidConfig, c.PreferredValidator, crypto.ValidatorPrefix)
	}
	return nil
}

// Equal compares every address.
func (c Config) Equal(other Config) bool {
	return c.Hub.Equal(other.Hub) &&
		c.Token.Equal(other.Token) &&
		c.Custody.Equal(other.Custody) &&
		c.Overseer.Equal(other.Overseer) &&
		c.Market.Equal(other.Market) &&
		c.Pair.Equal(other.Pair) &&
		c.PreferredValidator.Equal(other.PreferredValidator)
}

// InstantiateMsg carries the configuration record.
type InstantiateMsg struct {
	Config Config `json:"config"`
}

// Command is one of Deposit, DepositCollateral, Borrow, Swap or Redeposit.
type Command interface {
	command() string
}

// Deposit bonds the attached coin and starts a cycle. Anyone may send it.
type Deposit struct{}

// DepositCollateral posts the derivative balance. Self only.
type DepositCollateral struct{}

// Borrow draws the remaining borrow capacity. Self only.
type Borrow struct{}

// Swap offers Amount of the stable denomination, less slippage, to the pair.
// Self only.
type Swap struct {
	Amount *uint256.Int `json:"amount"`
}

// Redeposit bonds the native proceeds of the last swap. Self only.
type Redeposit struct{}

func (Deposit) command() string           { return "deposit" }
func (DepositCollateral) command() string { return "deposit_collateral" }
func (Borrow) command() string            { return "borrow" }
func (Swap) command() string              { return "swap" }
func (Redeposit) command() string         { return "redeposit" }

// CommandName returns the wire tag of cmd.
func CommandName(cmd Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.command()
}

// ExecuteMsg is the JSON envelope of a Command.
type ExecuteMsg struct {
	Deposit           *Deposit           `json:"deposit,omitempty"`
	DepositCollateral *DepositCollateral `json:"deposit_collateral,omitempty"`
	Borrow            *Borrow            `json:"borrow,omitempty"`
	Swap              *Swap              `json:"swap,omitempty"`
	Redeposit         *Redeposit         `json:"redeposit,omitempty"`
}

// EncodeCommand wraps cmd in its envelope.
func EncodeCommand(cmd Command) ExecuteMsg {
	switch c := cmd.(type) {
	case Deposit:
		return ExecuteMsg{Deposit: &c}
	case DepositCollateral:
		return ExecuteMsg{DepositCollateral: &c}
	case Borrow:
		return ExecuteMsg{Borrow: &c}
	case Swap:
		return ExecuteMsg{Swap: &c}
	case Redeposit:
		return ExecuteMsg{Redeposit: &c}
	default:
		return ExecuteMsg{}
	}
}

// DecodeCommand parses a JSON envelope holding exactly one command.
func DecodeCommand(raw []byte) (Command, error) {
	var msg ExecuteMsg
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	var cmds []Command
	if msg.Deposit != nil {
		cmds = append(cmds, *msg.Deposit)
	}
	if msg.DepositCollateral != nil {
		cmds = append(cmds, *msg.DepositCollateral)
	}
	if msg.Borrow != nil {
		cmds = append(cmds, *msg.Borrow)
	}
	if msg.Swap != nil {
		if msg.Swap.Amount == nil {
			return nil, fmt.Errorf("%w: swap amount required", ErrValidation)
		}
		cmds = append(cmds, *msg.Swap)
	}
	if msg.Redeposit != nil {
		cmds = append(cmds, *msg.Redeposit)
	}
	if len(cmds) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one command, got %d", ErrUnknownCommand, len(cmds))
	}
	return cmds[0], nil
}

// QueryMsg is the tagged union of controller queries.
type QueryMsg struct {
	PossibleBorrow *PossibleBorrowQuery `json:"possible_borrow,omitempty"`
	Collateral     *CollateralQuery     `json:"collateral,omitempty"`
	Config         *ConfigQuery         `json:"config,omitempty"`
	EstimateBond   *EstimateBondQuery   `json:"estimate_bond,omitempty"`
}

// PossibleBorrowQuery recomputes borrow capacity for any account, optionally
// at a given block time (borrow limit) and height (loan amount).
type PossibleBorrowQuery struct {
	Target      crypto.Address `json:"target"`
	BlockTime   *uint64        `json:"block_time,omitempty"`
	BlockHeight *uint64        `json:"block_height,omitempty"`
}

type PossibleBorrowResponse struct {
	BorrowLimit     *uint256.Int `json:"borrow_limit"`
	AlreadyBorrowed *uint256.Int `json:"already_borrowed"`
	BorrowAmount    *uint256.Int `json:"borrow_amount"`
}

type CollateralQuery struct {
	Target crypto.Address `json:"target"`
}

// CollateralResponse is the custody snapshot for the target.
type CollateralResponse = moneymarket.BorrowerResponse

type ConfigQuery struct{}

type ConfigResponse = Config

// EstimateBondQuery asks how many derivative units bonding Amount would mint
// at the current hub exchange rate.
type EstimateBondQuery struct {
	Amount *uint256.Int `json:"amount"`
}

type EstimateBondResponse struct {
	Amount       *uint256.Int  `json:"amount"`
	ExchangeRate types.Decimal `json:"exchange_rate"`
	Bonded       *uint256.Int  `json:"bonded"`
}
