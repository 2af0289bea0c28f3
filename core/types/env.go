package types

import "leverageloop/crypto"

// BlockInfo describes the block a transaction executes in. Time is unix
// seconds.
type BlockInfo struct {
	Height  uint64 `json:"height"`
	Time    uint64 `json:"time"`
	ChainID string `json:"chain_id"`
}

// ContractInfo identifies the contract being invoked.
type ContractInfo struct {
	Address crypto.Address `json:"address"`
}

// Env is the execution environment handed to every contract entry point.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract ContractInfo `json:"contract"`
}

// MessageInfo carries the caller identity and the coins attached to the call.
type MessageInfo struct {
	Sender crypto.Address `json:"sender"`
	Funds  Coins          `json:"funds"`
}
