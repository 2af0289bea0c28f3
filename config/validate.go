package config

import (
	"fmt"
	"strings"

	"leverageloop/core/types"
	"leverageloop/crypto"
)

// Validate decodes every address and parameter of cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if _, err := cfg.LeverageConfig(); err != nil {
		return err
	}
	if _, err := decodeAccount("contracts.Leverage", cfg.Contracts.Leverage); err != nil {
		return err
	}
	g := cfg.Genesis
	if strings.TrimSpace(g.ChainID) == "" {
		return fmt.Errorf("genesis: ChainID required")
	}
	rate, err := parseDecimal("genesis.ExchangeRate", g.ExchangeRate)
	if err != nil {
		return err
	}
	if rate.IsZero() {
		return fmt.Errorf("genesis: ExchangeRate must be positive")
	}
	if _, err := parseDecimal("genesis.CollateralPrice", g.CollateralPrice); err != nil {
		return err
	}
	if err := belowOne("genesis.TaxRate", g.TaxRate, false); err != nil {
		return err
	}
	if err := belowOne("genesis.MaxLTV", g.MaxLTV, true); err != nil {
		return err
	}
	if err := belowOne("genesis.PairCommission", g.PairCommission, false); err != nil {
		return err
	}
	if g.PoolNative == 0 || g.PoolStable == 0 {
		return fmt.Errorf("genesis: pool reserves must be positive")
	}
	for _, v := range g.Validators {
		if _, err := decodeValidator("genesis.Validators", v); err != nil {
			return err
		}
	}
	return nil
}

func decodeAccount(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if addr.Prefix() != crypto.AccountPrefix {
		return crypto.Address{}, fmt.Errorf("invalid %s %q: expected %s prefix", field, value, crypto.AccountPrefix)
	}
	return addr, nil
}

func decodeValidator(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if addr.Prefix() != crypto.ValidatorPrefix {
		return crypto.Address{}, fmt.Errorf("invalid %s %q: expected %s prefix", field, value, crypto.ValidatorPrefix)
	}
	return addr, nil
}

func parseDecimal(field, value string) (types.Decimal, error) {
	d, err := types.ParseDecimal(value)
	if err != nil {
		return types.Decimal{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

// belowOne checks value < 1, or value <= 1 when inclusive.
func belowOne(field, value string, inclusive bool) error {
	d, err := parseDecimal(field, value)
	if err != nil {
		return err
	}
	cmp := d.Cmp(types.DecimalOne())
	if cmp > 0 || (cmp == 0 && !inclusive) {
		return fmt.Errorf("invalid %s %q: out of range", field, value)
	}
	return nil
}
