package ledger

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// TraceEntry records one delivered call in delivery order.
type TraceEntry struct {
	Index      int               `json:"index"`
	Depth      int               `json:"depth"`
	Sender     crypto.Address    `json:"sender"`
	Target     crypto.Address    `json:"target"`
	Label      string            `json:"label,omitempty"`
	Action     string            `json:"action"`
	Funds      types.Coins       `json:"funds,omitempty"`
	Taxes      types.Coins       `json:"taxes,omitempty"`
	Attributes []types.Attribute `json:"attributes,omitempty"`
}

// Receipt summarises a transaction. Reverted receipts keep the trace up to and
// including the failing call but carry no events.
type Receipt struct {
	Hash     string         `json:"hash"`
	Height   uint64         `json:"height"`
	Time     uint64         `json:"time"`
	Sender   crypto.Address `json:"sender"`
	Contract crypto.Address `json:"contract"`
	Action   string         `json:"action"`
	Trace    []TraceEntry   `json:"trace"`
	Events   []types.Event  `json:"events,omitempty"`
	Data     []byte         `json:"data,omitempty"`
	Reverted bool           `json:"reverted"`
	Error    string         `json:"error,omitempty"`
}

// Actions lists the delivered call actions in order.
func (r *Receipt) Actions() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Trace))
	for i, entry := range r.Trace {
		out[i] = entry.Action
	}
	return out
}

// EventsOfType returns the committed events of the given type in emission order.
func (r *Receipt) EventsOfType(eventType string) []types.Event {
	if r == nil {
		return nil
	}
	var out []types.Event
	for _, e := range r.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type txHashInput struct {
	ChainID  string
	Height   uint64
	Sender   []byte
	Contract []byte
	Msg      []byte
}

func txHash(chainID string, height uint64, sender, contract crypto.Address, msg []byte) string {
	encoded, err := rlp.EncodeToBytes(txHashInput{
		ChainID:  chainID,
		Height:   height,
		Sender:   sender.Bytes(),
		Contract: contract.Bytes(),
		Msg:      msg,
	})
	if err != nil {
		encoded = append([]byte(chainID), msg...)
	}
	sum := blake3.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
