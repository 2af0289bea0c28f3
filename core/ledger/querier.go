package ledger

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// querier reads through the store of the running transaction. Contracts
// reached through it only ever see a read-only view.
type querier struct {
	ledger *Ledger
	store  KVStore
	block  types.BlockInfo
}

func (q *querier) QuerySmart(ctx context.Context, contract crypto.Address, msg []byte) ([]byte, error) {
	reg, ok := q.ledger.contracts[contract.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	deps := Deps{
		Store:   readOnlyStore{KVStore: newPrefixStore(q.store, contractPrefix(reg.address))},
		Querier: q,
	}
	env := types.Env{Block: q.block, Contract: types.ContractInfo{Address: reg.address}}
	res, err := reg.contract.Query(ctx, deps, env, msg)
	if err != nil {
		return nil, fmt.Errorf("query %s on %s: %w", types.MessageName(msg), reg.label, err)
	}
	return res, nil
}

func (q *querier) Balance(_ context.Context, addr crypto.Address, denom string) (*uint256.Int, error) {
	return bank{store: q.store, params: q.ledger.params}.balance(addr, denom)
}

func (q *querier) TaxRate(context.Context) (types.Decimal, error) {
	return q.ledger.params.TaxRate, nil
}

func (q *querier) TaxCap(_ context.Context, denom string) (*uint256.Int, error) {
	return q.ledger.params.taxCap(denom), nil
}
