package types

import (
	"encoding/json"
	"fmt"
	"sort"

	"leverageloop/crypto"
)

// ExecuteCall invokes a contract entry point after the emitting step returns.
type ExecuteCall struct {
	Contract crypto.Address  `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    Coins           `json:"funds,omitempty"`
}

// BankSend transfers native coins from the emitting contract.
type BankSend struct {
	To     crypto.Address `json:"to"`
	Amount Coins          `json:"amount"`
}

// Call is an outgoing work item. Exactly one variant is set.
type Call struct {
	Execute *ExecuteCall `json:"execute,omitempty"`
	Send    *BankSend    `json:"send,omitempty"`
}

// NewExecuteCall encodes msg as JSON and targets contract with it.
func NewExecuteCall(contract crypto.Address, msg interface{}, funds ...Coin) (Call, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Call{}, fmt.Errorf("encode call to %s: %w", contract, err)
	}
	call := &ExecuteCall{Contract: contract, Msg: raw}
	if len(funds) > 0 {
		call.Funds = Coins(funds).Clone()
	}
	return Call{Execute: call}, nil
}

// NewBankSend transfers amount to the recipient.
func NewBankSend(to crypto.Address, amount ...Coin) Call {
	return Call{Send: &BankSend{To: to, Amount: Coins(amount).Clone()}}
}

// Target returns the contract or recipient the call is addressed to.
func (c Call) Target() crypto.Address {
	switch {
	case c.Execute != nil:
		return c.Execute.Contract
	case c.Send != nil:
		return c.Send.To
	default:
		return crypto.Address{}
	}
}

// Action names the call for traces: the message tag for executions, "send"
// for bank transfers.
func (c Call) Action() string {
	switch {
	case c.Execute != nil:
		return MessageName(c.Execute.Msg)
	case c.Send != nil:
		return "send"
	default:
		return ""
	}
}

// MessageName returns the single top-level key of a tagged JSON message such
// as {"deposit":{}}.
func MessageName(msg []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(msg, &envelope); err != nil || len(envelope) != 1 {
		return "unknown"
	}
	for name := range envelope {
		return name
	}
	return "unknown"
}

// Attribute is a key/value log line attached to a response.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is what a contract entry point hands back to the ledger: the
// calls to deliver next, in order, plus its logs.
type Response struct {
	Calls      []Call      `json:"calls,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Events     []Event     `json:"events,omitempty"`
	Data       []byte      `json:"data,omitempty"`
}

func NewResponse() *Response { return &Response{} }

func (r *Response) AddCall(c Call) *Response {
	r.Calls = append(r.Calls, c)
	return r
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddEvent(e *Event) *Response {
	if e != nil {
		r.Events = append(r.Events, *e)
	}
	return r
}

// Attribute returns the first attribute value stored under key.
func (r *Response) Attribute(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType satisfies the events.Event interface so ledger events can be
// re-broadcast without conversion.
func (e Event) EventType() string { return e.Type }

// SortedKeys returns the attribute keys in lexical order.
func (e Event) SortedKeys() []string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
