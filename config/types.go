package config

import (
	"leverageloop/crypto"
)

// Registration labels of the devnet contracts. Contract addresses are derived
// from them.
const (
	LabelHub      = "hub"
	LabelToken    = "bluna-token"
	LabelCustody  = "custody-bluna"
	LabelOverseer = "overseer"
	LabelMarket   = "market"
	LabelPair     = "pair-luna-uusd"
	LabelLeverage = "leverage"
)

// Contracts holds the bech32 addresses of the deployed contracts and the
// validator bonds are delegated to.
type Contracts struct {
	Hub                string `toml:"Hub"`
	Token              string `toml:"Token"`
	Custody            string `toml:"Custody"`
	Overseer           string `toml:"Overseer"`
	Market             string `toml:"Market"`
	Pair               string `toml:"Pair"`
	Leverage           string `toml:"Leverage"`
	PreferredValidator string `toml:"PreferredValidator"`
}

// DefaultContracts derives every address from its registration label.
func DefaultContracts() Contracts {
	return Contracts{
		Hub:                crypto.ContractAddress(LabelHub).String(),
		Token:              crypto.ContractAddress(LabelToken).String(),
		Custody:            crypto.ContractAddress(LabelCustody).String(),
		Overseer:           crypto.ContractAddress(LabelOverseer).String(),
		Market:             crypto.ContractAddress(LabelMarket).String(),
		Pair:               crypto.ContractAddress(LabelPair).String(),
		Leverage:           crypto.ContractAddress(LabelLeverage).String(),
		PreferredValidator: crypto.AccountAddress(crypto.ValidatorPrefix, "validator-0").String(),
	}
}

func (c *Contracts) applyDefaults(defaults Contracts) {
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.Hub, defaults.Hub)
	fill(&c.Token, defaults.Token)
	fill(&c.Custody, defaults.Custody)
	fill(&c.Overseer, defaults.Overseer)
	fill(&c.Market, defaults.Market)
	fill(&c.Pair, defaults.Pair)
	fill(&c.Leverage, defaults.Leverage)
	fill(&c.PreferredValidator, defaults.PreferredValidator)
}

// Genesis captures the chain and collaborator parameters a devnet is
// deployed with. Decimals are strings with up to 18 fractional digits;
// amounts are in minimum units.
type Genesis struct {
	ChainID              string            `toml:"ChainID"`
	GenesisTime          int64             `toml:"GenesisTime"`
	BlockIntervalSeconds uint64            `toml:"BlockIntervalSeconds"`
	TaxRate              string            `toml:"TaxRate"`
	TaxCaps              map[string]uint64 `toml:"TaxCaps"`
	TaxExempt            []string          `toml:"TaxExempt"`
	ExchangeRate         string            `toml:"ExchangeRate"`
	CollateralPrice      string            `toml:"CollateralPrice"`
	MaxLTV               string            `toml:"MaxLTV"`
	PairCommission       string            `toml:"PairCommission"`
	PoolNative           uint64            `toml:"PoolNative"`
	PoolStable           uint64            `toml:"PoolStable"`
	MarketReserve        uint64            `toml:"MarketReserve"`
	Validators           []string          `toml:"Validators"`
}

// DefaultGenesis prices the native coin at 100 stable units with a bonding
// rate of 1.0526 native units per derivative unit.
func DefaultGenesis() Genesis {
	return Genesis{
		ChainID:              "leverage-devnet-1",
		GenesisTime:          1_600_000_000,
		BlockIntervalSeconds: 6,
		TaxRate:              "0.001",
		TaxCaps:              map[string]uint64{"uusd": 1_400_000},
		TaxExempt:            []string{"uluna"},
		ExchangeRate:         "1.052631578947368421",
		CollateralPrice:      "100",
		MaxLTV:               "0.5",
		PairCommission:       "0.003",
		PoolNative:           1_000_000_000_000,
		PoolStable:           100_000_000_000_000,
		MarketReserve:        500_000_000_000_000,
		Validators:           []string{crypto.AccountAddress(crypto.ValidatorPrefix, "validator-0").String()},
	}
}

func (g *Genesis) applyDefaults(defaults Genesis) {
	if g.ChainID == "" {
		g.ChainID = defaults.ChainID
	}
	if g.GenesisTime == 0 {
		g.GenesisTime = defaults.GenesisTime
	}
	if g.BlockIntervalSeconds == 0 {
		g.BlockIntervalSeconds = defaults.BlockIntervalSeconds
	}
	if g.TaxRate == "" {
		g.TaxRate = defaults.TaxRate
	}
	if g.TaxCaps == nil {
		g.TaxCaps = defaults.TaxCaps
	}
	if g.TaxExempt == nil {
		g.TaxExempt = defaults.TaxExempt
	}
	if g.ExchangeRate == "" {
		g.ExchangeRate = defaults.ExchangeRate
	}
	if g.CollateralPrice == "" {
		g.CollateralPrice = defaults.CollateralPrice
	}
	if g.MaxLTV == "" {
		g.MaxLTV = defaults.MaxLTV
	}
	if g.PairCommission == "" {
		g.PairCommission = defaults.PairCommission
	}
	if g.PoolNative == 0 {
		g.PoolNative = defaults.PoolNative
	}
	if g.PoolStable == 0 {
		g.PoolStable = defaults.PoolStable
	}
	if g.MarketReserve == 0 {
		g.MarketReserve = defaults.MarketReserve
	}
}

// Pauses lists modules whose commands are rejected.
type Pauses struct {
	Leverage bool `toml:"Leverage"`
}

// Modules returns the names of the paused modules.
func (p Pauses) Modules() []string {
	var out []string
	if p.Leverage {
		out = append(out, "leverage")
	}
	return out
}
