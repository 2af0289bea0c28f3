package leverage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"leverageloop/core/ledger"
	"leverageloop/crypto"
)

var configKey = []byte("config")

type storedConfig struct {
	Hub                []byte
	Token              []byte
	Custody            []byte
	Overseer           []byte
	Market             []byte
	Pair               []byte
	PreferredValidator []byte
}

func saveConfig(store ledger.KVStore, cfg Config) error {
	if _, exists, err := store.Get(configKey); err != nil {
		return err
	} else if exists {
		return ErrConfigExists
	}
	encoded, err := rlp.EncodeToBytes(storedConfig{
		Hub:                cfg.Hub.Bytes(),
		Token:              cfg.Token.Bytes(),
		Custody:            cfg.Custody.Bytes(),
		Overseer:           cfg.Overseer.Bytes(),
		Market:             cfg.Market.Bytes(),
		Pair:               cfg.Pair.Bytes(),
		PreferredValidator: cfg.PreferredValidator.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return store.Set(configKey, encoded)
}

func loadConfig(store ledger.KVStore) (Config, error) {
	data, ok, err := store.Get(configKey)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrNotInstantiated
	}
	var stored storedConfig
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg := Config{}
	fields := []struct {
		dst    *crypto.Address
		prefix crypto.AddressPrefix
		raw    []byte
	}{
		{&cfg.Hub, crypto.AccountPrefix, stored.Hub},
		{&cfg.Token, crypto.AccountPrefix, stored.Token},
		{&cfg.Custody, crypto.AccountPrefix, stored.Custody},
		{&cfg.Overseer, crypto.AccountPrefix, stored.Overseer},
		{&cfg.Market, crypto.AccountPrefix, stored.Market},
		{&cfg.Pair, crypto.AccountPrefix, stored.Pair},
		{&cfg.PreferredValidator, crypto.ValidatorPrefix, stored.PreferredValidator},
	}
	for _, f := range fields {
		addr, err := crypto.NewAddress(f.prefix, f.raw)
		if err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
		*f.dst = addr
	}
	return cfg, nil
}
