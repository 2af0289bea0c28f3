package leverage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
)

// Query answers read-only requests. Queries are never paused and need no
// authorization.
func (e *Engine) Query(ctx context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q QueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownQuery, err)
	}
	cfg, err := loadConfig(deps.Store)
	if err != nil {
		return nil, err
	}
	gw := e.gateway(deps.Querier, cfg)

	var res interface{}
	switch {
	case q.PossibleBorrow != nil:
		res, err = possibleBorrow(ctx, gw, q.PossibleBorrow.Target, q.PossibleBorrow.BlockTime, q.PossibleBorrow.BlockHeight)
	case q.Collateral != nil:
		res, err = gw.Collateral(ctx, q.Collateral.Target)
	case q.Config != nil:
		res = cfg
	case q.EstimateBond != nil:
		res, err = estimateBond(ctx, gw, q.EstimateBond.Amount)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownQuery, types.MessageName(msg))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func estimateBond(ctx context.Context, gw Gateway, amount *uint256.Int) (EstimateBondResponse, error) {
	if amount == nil {
		return EstimateBondResponse{}, fmt.Errorf("%w: amount required", ErrValidation)
	}
	rate, err := gw.ExchangeRate(ctx)
	if err != nil {
		return EstimateBondResponse{}, fmt.Errorf("leverage: query exchange rate: %w", err)
	}
	inverse, err := OppositeRatio(rate)
	if err != nil {
		return EstimateBondResponse{}, fmt.Errorf("leverage: exchange rate %s: %w", rate, err)
	}
	bonded, err := inverse.MulInt(amount)
	if err != nil {
		return EstimateBondResponse{}, err
	}
	return EstimateBondResponse{Amount: amount, ExchangeRate: rate, Bonded: bonded}, nil
}
