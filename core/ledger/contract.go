package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// Contract is the entry point surface a registered contract exposes. Execute
// and Instantiate may emit calls through the returned response; the ledger
// delivers them after the entry point returns.
type Contract interface {
	Instantiate(ctx context.Context, deps Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error)
	Execute(ctx context.Context, deps Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error)
	Query(ctx context.Context, deps Deps, env types.Env, msg []byte) ([]byte, error)
}

// Deps bundles the storage and read access handed to a contract invocation.
type Deps struct {
	Store   KVStore
	Querier Querier
}

// KVStore is the contract-scoped key/value store. Queries receive a
// read-only view.
type KVStore interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Querier serves synchronous read-only requests against the state visible to
// the running transaction. It never observes calls still waiting for delivery.
type Querier interface {
	QuerySmart(ctx context.Context, contract crypto.Address, msg []byte) ([]byte, error)
	Balance(ctx context.Context, addr crypto.Address, denom string) (*uint256.Int, error)
	TaxRate(ctx context.Context) (types.Decimal, error)
	TaxCap(ctx context.Context, denom string) (*uint256.Int, error)
}

// QueryJSON encodes req, queries contract and decodes the answer into out.
func QueryJSON(ctx context.Context, q Querier, contract crypto.Address, req, out interface{}) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	res, err := q.QuerySmart(ctx, contract, raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("decode %s answer from %s: %w", types.MessageName(raw), contract, err)
	}
	return nil
}
