package hub

import (
	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// InstantiateMsg configures the staking hub.
type InstantiateMsg struct {
	Token        crypto.Address   `json:"token"`
	ExchangeRate types.Decimal    `json:"exchange_rate"`
	Denom        string           `json:"denom"`
	Validators   []crypto.Address `json:"validators"`
}

// ExecuteMsg is the tagged union of hub commands.
type ExecuteMsg struct {
	Bond               *BondMsg               `json:"bond,omitempty"`
	UpdateExchangeRate *UpdateExchangeRateMsg `json:"update_exchange_rate,omitempty"`
}

// BondMsg stakes the attached coin with validator and mints derivative tokens
// to the sender.
type BondMsg struct {
	Validator crypto.Address `json:"validator"`
}

// UpdateExchangeRateMsg is restricted to the hub creator.
type UpdateExchangeRateMsg struct {
	ExchangeRate types.Decimal `json:"exchange_rate"`
}

// QueryMsg is the tagged union of hub queries.
type QueryMsg struct {
	State *StateQuery `json:"state,omitempty"`
}

type StateQuery struct{}

// StateResponse reports the current bonding exchange rate.
type StateResponse struct {
	ExchangeRate    types.Decimal `json:"exchange_rate"`
	TotalBondAmount *uint256.Int  `json:"total_bond_amount"`
	TotalSupply     *uint256.Int  `json:"total_supply"`
}

// TokenInstantiateMsg configures the derivative token.
type TokenInstantiateMsg struct {
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol"`
	Decimals  uint8            `json:"decimals"`
	Minter    crypto.Address   `json:"minter"`
	Operators []crypto.Address `json:"operators,omitempty"`
}

// TokenExecuteMsg is the tagged union of derivative token commands.
type TokenExecuteMsg struct {
	Mint         *MintMsg         `json:"mint,omitempty"`
	Transfer     *TransferMsg     `json:"transfer,omitempty"`
	TransferFrom *TransferFromMsg `json:"transfer_from,omitempty"`
}

type MintMsg struct {
	Recipient crypto.Address `json:"recipient"`
	Amount    *uint256.Int   `json:"amount"`
}

type TransferMsg struct {
	Recipient crypto.Address `json:"recipient"`
	Amount    *uint256.Int   `json:"amount"`
}

// TransferFromMsg moves tokens out of owner. Only operators may send it.
type TransferFromMsg struct {
	Owner     crypto.Address `json:"owner"`
	Recipient crypto.Address `json:"recipient"`
	Amount    *uint256.Int   `json:"amount"`
}

// TokenQueryMsg is the tagged union of derivative token queries.
type TokenQueryMsg struct {
	Balance   *BalanceQuery   `json:"balance,omitempty"`
	TokenInfo *TokenInfoQuery `json:"token_info,omitempty"`
}

type BalanceQuery struct {
	Address crypto.Address `json:"address"`
}

type BalanceResponse struct {
	Balance *uint256.Int `json:"balance"`
}

type TokenInfoQuery struct{}

type TokenInfoResponse struct {
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Decimals    uint8        `json:"decimals"`
	TotalSupply *uint256.Int `json:"total_supply"`
}
