package pair

import (
	"github.com/holiman/uint256"

	"leverageloop/core/types"
)

// InstantiateMsg names the two native denominations of the pool. Reserves are
// provided by attached funds.
type InstantiateMsg struct {
	Denoms     [2]string     `json:"denoms"`
	Commission types.Decimal `json:"commission"`
}

// Asset is an amount of a native denomination.
type Asset struct {
	Amount *uint256.Int `json:"amount"`
	Denom  string       `json:"denom"`
}

// ExecuteMsg is the tagged union of pair commands.
type ExecuteMsg struct {
	Swap             *SwapMsg             `json:"swap,omitempty"`
	ProvideLiquidity *ProvideLiquidityMsg `json:"provide_liquidity,omitempty"`
}

// SwapMsg offers the attached asset for the other side of the pool.
type SwapMsg struct {
	OfferAsset  Asset          `json:"offer_asset"`
	BeliefPrice *types.Decimal `json:"belief_price,omitempty"`
	MaxSpread   *types.Decimal `json:"max_spread,omitempty"`
}

// ProvideLiquidityMsg adds the attached funds to the reserves.
type ProvideLiquidityMsg struct{}

// QueryMsg is the tagged union of pair queries.
type QueryMsg struct {
	Pool       *PoolQuery       `json:"pool,omitempty"`
	Simulation *SimulationQuery `json:"simulation,omitempty"`
}

type PoolQuery struct{}

type PoolResponse struct {
	Assets [2]Asset `json:"assets"`
}

type SimulationQuery struct {
	OfferAsset Asset `json:"offer_asset"`
}

type SimulationResponse struct {
	ReturnAmount     *uint256.Int `json:"return_amount"`
	SpreadAmount     *uint256.Int `json:"spread_amount"`
	CommissionAmount *uint256.Int `json:"commission_amount"`
}
