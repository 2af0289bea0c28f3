package config

import (
	"time"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/leverage"
)

// LeverageConfig decodes the controller's configuration record.
func (c *Config) LeverageConfig() (leverage.Config, error) {
	var out leverage.Config
	fields := []struct {
		name  string
		value string
		dst   *crypto.Address
	}{
		{"contracts.Hub", c.Contracts.Hub, &out.Hub},
		{"contracts.Token", c.Contracts.Token, &out.Token},
		{"contracts.Custody", c.Contracts.Custody, &out.Custody},
		{"contracts.Overseer", c.Contracts.Overseer, &out.Overseer},
		{"contracts.Market", c.Contracts.Market, &out.Market},
		{"contracts.Pair", c.Contracts.Pair, &out.Pair},
	}
	for _, f := range fields {
		addr, err := decodeAccount(f.name, f.value)
		if err != nil {
			return leverage.Config{}, err
		}
		*f.dst = addr
	}
	validator, err := decodeValidator("contracts.PreferredValidator", c.Contracts.PreferredValidator)
	if err != nil {
		return leverage.Config{}, err
	}
	out.PreferredValidator = validator
	return out, nil
}

// LeverageAddress decodes the controller's own address.
func (c *Config) LeverageAddress() (crypto.Address, error) {
	return decodeAccount("contracts.Leverage", c.Contracts.Leverage)
}

// LedgerParams converts the genesis section into ledger parameters.
func (g Genesis) LedgerParams() (ledger.Params, error) {
	params := ledger.DefaultParams()
	params.ChainID = g.ChainID
	rate, err := parseDecimal("genesis.TaxRate", g.TaxRate)
	if err != nil {
		return ledger.Params{}, err
	}
	params.TaxRate = rate
	params.TaxCaps = make(map[string]*uint256.Int, len(g.TaxCaps))
	for denom, capAmount := range g.TaxCaps {
		params.TaxCaps[denom] = uint256.NewInt(capAmount)
	}
	params.TaxExempt = append([]string(nil), g.TaxExempt...)
	if g.BlockIntervalSeconds > 0 {
		params.BlockInterval = time.Duration(g.BlockIntervalSeconds) * time.Second
	}
	if g.GenesisTime > 0 {
		params.GenesisTime = time.Unix(g.GenesisTime, 0).UTC()
	}
	return params, nil
}

// MarketParams returns the collateral price and max LTV of the overseer.
func (g Genesis) MarketParams() (price, maxLTV types.Decimal, err error) {
	if price, err = parseDecimal("genesis.CollateralPrice", g.CollateralPrice); err != nil {
		return
	}
	maxLTV, err = parseDecimal("genesis.MaxLTV", g.MaxLTV)
	return
}

// HubRate returns the bonding exchange rate.
func (g Genesis) HubRate() (types.Decimal, error) {
	return parseDecimal("genesis.ExchangeRate", g.ExchangeRate)
}

// Commission returns the pair commission rate.
func (g Genesis) Commission() (types.Decimal, error) {
	return parseDecimal("genesis.PairCommission", g.PairCommission)
}

// ValidatorAddresses decodes the hub whitelist.
func (g Genesis) ValidatorAddresses() ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(g.Validators))
	for _, v := range g.Validators {
		addr, err := decodeValidator("genesis.Validators", v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
