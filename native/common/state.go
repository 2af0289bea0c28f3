package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"leverageloop/crypto"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidMsg   = errors.New("invalid message")
)

// KV is the contract store surface the collaborator contracts need.
type KV interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Key joins a namespace and an address into a store key.
func Key(namespace string, addr crypto.Address) []byte {
	return append([]byte(namespace+"/"), addr.Bytes()...)
}

// PutRLP encodes v with RLP and writes it under key.
func PutRLP(store KV, key []byte, v interface{}) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(key, encoded)
}

// GetRLP decodes the value under key into out. It reports false when the key
// is absent.
func GetRLP(store KV, key []byte, out interface{}) (bool, error) {
	data, ok, err := store.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetAmount reads an amount, treating a missing key as zero.
func GetAmount(store KV, key []byte) (*uint256.Int, error) {
	value := new(big.Int)
	if _, err := GetRLP(store, key, value); err != nil {
		return nil, err
	}
	amount, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("decode %s: amount overflows 256 bits", key)
	}
	return amount, nil
}

// SetAmount writes amount, deleting the key when it is zero.
func SetAmount(store KV, key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return store.Delete(key)
	}
	return PutRLP(store, key, amount.ToBig())
}

// AddAmount adds delta to the amount under key and returns the new value.
func AddAmount(store KV, key []byte, delta *uint256.Int) (*uint256.Int, error) {
	current, err := GetAmount(store, key)
	if err != nil {
		return nil, err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, delta)
	if overflow {
		return nil, fmt.Errorf("%s: amount overflow", key)
	}
	return next, SetAmount(store, key, next)
}

// SubAmount subtracts delta from the amount under key. It fails with
// insufficient when the stored amount is smaller than delta.
func SubAmount(store KV, key []byte, delta *uint256.Int, insufficient error) (*uint256.Int, error) {
	current, err := GetAmount(store, key)
	if err != nil {
		return nil, err
	}
	next, underflow := new(uint256.Int).SubOverflow(current, delta)
	if underflow {
		return nil, fmt.Errorf("%w: have %s, need %s", insufficient, current.Dec(), delta.Dec())
	}
	return next, SetAmount(store, key, next)
}

// DecodeTagged decodes a tagged union message, rejecting unknown fields.
func DecodeTagged(msg []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	return nil
}

// Addresses converts stored address bytes back to addresses carrying prefix.
func Addresses(prefix crypto.AddressPrefix, raw [][]byte) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		addr, err := crypto.NewAddress(prefix, b)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// AddressBytes is the inverse of Addresses.
func AddressBytes(addrs []crypto.Address) [][]byte {
	out := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Bytes())
	}
	return out
}

// Contains reports whether addr is in set.
func Contains(set []crypto.Address, addr crypto.Address) bool {
	for _, a := range set {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}
