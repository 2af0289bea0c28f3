package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// transaction holds the state of one call tree while it is delivered.
type transaction struct {
	ledger *Ledger
	cache  *cacheStore
	block  types.BlockInfo
	logger *slog.Logger
	trace  []TraceEntry
	events []types.Event
}

func (tx *transaction) bank() bank {
	return bank{store: tx.cache, params: tx.ledger.params}
}

func (tx *transaction) querier() *querier {
	return &querier{ledger: tx.ledger, store: tx.cache, block: tx.block}
}

// deliver runs call on behalf of sender and then, depth first, every call the
// target emitted, in emission order. The first error aborts the whole tree.
func (tx *transaction) deliver(ctx context.Context, sender crypto.Address, call types.Call, depth int, entry entryPoint) ([]byte, error) {
	params := tx.ledger.params
	if depth > params.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrDepthLimit, depth, params.MaxDepth)
	}
	if len(tx.trace) >= params.MaxCalls {
		return nil, fmt.Errorf("%w: more than %d calls", ErrCallLimit, params.MaxCalls)
	}

	index := len(tx.trace)
	action := call.Action()
	if entry == entryInstantiate {
		action = "instantiate"
	}
	target := call.Target()
	label := target.String()
	if reg, ok := tx.ledger.contracts[target.String()]; ok {
		label = reg.label
	}
	tx.trace = append(tx.trace, TraceEntry{
		Index:  index,
		Depth:  depth,
		Sender: sender,
		Target: target,
		Label:  label,
		Action: action,
	})
	tx.ledger.metrics.RecordCall(label, action, depth)

	ctx, span := tx.ledger.tracer.Start(ctx, "ledger.call", trace.WithAttributes(
		attribute.Int("ledger.call.index", index),
		attribute.Int("ledger.call.depth", depth),
		attribute.String("ledger.call.target", label),
		attribute.String("ledger.call.action", action),
	))
	defer span.End()

	fail := func(err error) ([]byte, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("ledger: call %d (%s) at depth %d: %w", index, action, depth, err)
	}

	tx.logger.Debug("delivering call",
		slog.Int("index", index),
		slog.Int("depth", depth),
		slog.String("sender", sender.String()),
		slog.String("target", label),
		slog.String("action", action))

	switch {
	case call.Send != nil && call.Execute == nil:
		taxes, err := tx.bank().transfer(sender, call.Send.To, call.Send.Amount)
		if err != nil {
			return fail(err)
		}
		tx.trace[index].Funds = call.Send.Amount.Clone()
		tx.trace[index].Taxes = taxes
		return nil, nil

	case call.Execute != nil && call.Send == nil:
		exec := call.Execute
		reg, ok := tx.ledger.contracts[exec.Contract.String()]
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrUnknownContract, exec.Contract))
		}
		if len(exec.Funds) > 0 {
			taxes, err := tx.bank().transfer(sender, reg.address, exec.Funds)
			if err != nil {
				return fail(err)
			}
			tx.trace[index].Funds = exec.Funds.Clone()
			tx.trace[index].Taxes = taxes
		}
		deps := Deps{
			Store:   newPrefixStore(tx.cache, contractPrefix(reg.address)),
			Querier: tx.querier(),
		}
		env := types.Env{Block: tx.block, Contract: types.ContractInfo{Address: reg.address}}
		info := types.MessageInfo{Sender: sender, Funds: exec.Funds.Clone()}

		var (
			resp *types.Response
			err  error
		)
		if entry == entryInstantiate {
			resp, err = reg.contract.Instantiate(ctx, deps, env, info, exec.Msg)
		} else {
			resp, err = reg.contract.Execute(ctx, deps, env, info, exec.Msg)
		}
		if err != nil {
			return fail(err)
		}
		if resp == nil {
			return nil, nil
		}
		tx.trace[index].Attributes = resp.Attributes
		tx.events = append(tx.events, resp.Events...)
		span.SetAttributes(attribute.Int("ledger.call.emitted", len(resp.Calls)))
		for _, next := range resp.Calls {
			if _, err := tx.deliver(ctx, reg.address, next, depth+1, entryExecute); err != nil {
				return nil, err
			}
		}
		return resp.Data, nil

	default:
		return fail(fmt.Errorf("%w: exactly one of execute or send must be set", ErrInvalidCall))
	}
}
