package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the deployment record of a leverage devnet: where its ledger
// lives, the addresses of the deployed contracts and the genesis parameters
// they were instantiated with.
type Config struct {
	NetworkName string    `toml:"NetworkName"`
	DataDir     string    `toml:"DataDir"`
	Contracts   Contracts `toml:"contracts"`
	Genesis     Genesis   `toml:"genesis"`
	Pauses      Pauses    `toml:"pauses"`
}

// Load loads the configuration from the given path, writing the default
// record first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the record of a fresh devnet.
func Default() *Config {
	return &Config{
		NetworkName: "leverage-local",
		DataDir:     "./leverage-data",
		Contracts:   DefaultContracts(),
		Genesis:     DefaultGenesis(),
	}
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaults.NetworkName
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	c.Contracts.applyDefaults(defaults.Contracts)
	c.Genesis.applyDefaults(defaults.Genesis)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
