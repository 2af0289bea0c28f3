package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

var (
	ErrInvalidBond      = errors.New("hub: exactly one coin of the bonding denomination required")
	ErrBondTooSmall     = errors.New("hub: bond mints no derivative tokens")
	ErrUnknownValidator = errors.New("hub: validator not whitelisted")
	ErrInvalidRate      = errors.New("hub: exchange rate must be positive")
)

// DefaultDenom is the native coin the hub accepts when none is configured.
const DefaultDenom = "uluna"

var (
	hubConfigKey = []byte("config")
	totalBondKey = []byte("total_bond")
)

type storedHub struct {
	Creator    []byte
	Token      []byte
	Denom      string
	Rate       *big.Int
	Validators [][]byte
}

type hubConfig struct {
	creator    crypto.Address
	token      crypto.Address
	denom      string
	rate       types.Decimal
	validators []crypto.Address
}

var _ ledger.Contract = (*Hub)(nil)

// Hub is the staking hub: it accepts native coin and mints the liquid
// staking derivative at the configured exchange rate.
type Hub struct{}

func NewHub() *Hub { return &Hub{} }

func (h *Hub) Instantiate(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var init InstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("hub: %w: %v", nativecommon.ErrInvalidMsg, err)
	}
	if init.Token.IsZero() {
		return nil, fmt.Errorf("hub: %w: token required", nativecommon.ErrInvalidMsg)
	}
	if init.ExchangeRate.IsZero() {
		return nil, ErrInvalidRate
	}
	if init.Denom == "" {
		init.Denom = DefaultDenom
	}
	cfg := hubConfig{
		creator:    info.Sender,
		token:      init.Token,
		denom:      init.Denom,
		rate:       init.ExchangeRate,
		validators: init.Validators,
	}
	if err := saveHubConfig(deps.Store, cfg); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("exchange_rate", cfg.rate.String()), nil
}

func (h *Hub) Execute(_ context.Context, deps ledger.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var exec ExecuteMsg
	if err := nativecommon.DecodeTagged(msg, &exec); err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	cfg, err := loadHubConfig(deps.Store)
	if err != nil {
		return nil, err
	}
	switch {
	case exec.Bond != nil:
		return h.bond(deps.Store, cfg, info, exec.Bond)
	case exec.UpdateExchangeRate != nil:
		if !info.Sender.Equal(cfg.creator) {
			return nil, fmt.Errorf("hub: %w", nativecommon.ErrUnauthorized)
		}
		if exec.UpdateExchangeRate.ExchangeRate.IsZero() {
			return nil, ErrInvalidRate
		}
		cfg.rate = exec.UpdateExchangeRate.ExchangeRate
		if err := saveHubConfig(deps.Store, cfg); err != nil {
			return nil, err
		}
		return types.NewResponse().
			AddAttribute("action", "update_exchange_rate").
			AddAttribute("exchange_rate", cfg.rate.String()), nil
	default:
		return nil, fmt.Errorf("hub: %w: unknown command", nativecommon.ErrInvalidMsg)
	}
}

func (h *Hub) bond(store ledger.KVStore, cfg hubConfig, info types.MessageInfo, msg *BondMsg) (*types.Response, error) {
	if len(info.Funds) != 1 || info.Funds[0].Denom != cfg.denom || info.Funds[0].IsZero() {
		return nil, ErrInvalidBond
	}
	if len(cfg.validators) > 0 && !nativecommon.Contains(cfg.validators, msg.Validator) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownValidator, msg.Validator)
	}
	amount := info.Funds[0].Amount
	minted, err := Mint(amount, cfg.rate)
	if err != nil {
		return nil, err
	}
	if minted.IsZero() {
		return nil, ErrBondTooSmall
	}
	if _, err := nativecommon.AddAmount(store, totalBondKey, amount); err != nil {
		return nil, err
	}
	call, err := types.NewExecuteCall(cfg.token, TokenExecuteMsg{
		Mint: &MintMsg{Recipient: info.Sender, Amount: minted},
	})
	if err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddCall(call).
		AddAttribute("action", "bond").
		AddAttribute("validator", msg.Validator.String()).
		AddAttribute("bonded", amount.Dec()).
		AddAttribute("minted", minted.Dec()).
		AddEvent(&types.Event{Type: "hub.bonded", Attributes: map[string]string{
			"staker":    info.Sender.String(),
			"validator": msg.Validator.String(),
			"bonded":    amount.Dec(),
			"minted":    minted.Dec(),
		}}), nil
}

// Mint is the derivative amount issued for bonding amount at rate native
// units per derivative unit, rounded down.
func Mint(amount *uint256.Int, rate types.Decimal) (*uint256.Int, error) {
	if rate.IsZero() {
		return nil, ErrInvalidRate
	}
	minted, overflow := new(uint256.Int).MulDivOverflow(amount, types.DecimalFractional, rate.Atomics())
	if overflow {
		return nil, types.ErrDecimalOverflow
	}
	return minted, nil
}

func (h *Hub) Query(ctx context.Context, deps ledger.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var q QueryMsg
	if err := nativecommon.DecodeTagged(msg, &q); err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	if q.State == nil {
		return nil, fmt.Errorf("hub: %w: unknown query", nativecommon.ErrInvalidMsg)
	}
	cfg, err := loadHubConfig(deps.Store)
	if err != nil {
		return nil, err
	}
	bonded, err := nativecommon.GetAmount(deps.Store, totalBondKey)
	if err != nil {
		return nil, err
	}
	var info TokenInfoResponse
	if err := ledger.QueryJSON(ctx, deps.Querier, cfg.token, TokenQueryMsg{TokenInfo: &TokenInfoQuery{}}, &info); err != nil {
		return nil, err
	}
	return json.Marshal(StateResponse{
		ExchangeRate:    cfg.rate,
		TotalBondAmount: bonded,
		TotalSupply:     info.TotalSupply,
	})
}

func saveHubConfig(store ledger.KVStore, cfg hubConfig) error {
	return nativecommon.PutRLP(store, hubConfigKey, storedHub{
		Creator:    cfg.creator.Bytes(),
		Token:      cfg.token.Bytes(),
		Denom:      cfg.denom,
		Rate:       cfg.rate.Atomics().ToBig(),
		Validators: nativecommon.AddressBytes(cfg.validators),
	})
}

func loadHubConfig(store ledger.KVStore) (hubConfig, error) {
	var stored storedHub
	ok, err := nativecommon.GetRLP(store, hubConfigKey, &stored)
	if err != nil {
		return hubConfig{}, err
	}
	if !ok {
		return hubConfig{}, errors.New("hub: not instantiated")
	}
	creator, err := crypto.NewAddress(crypto.AccountPrefix, stored.Creator)
	if err != nil {
		return hubConfig{}, fmt.Errorf("hub: creator: %w", err)
	}
	token, err := crypto.NewAddress(crypto.AccountPrefix, stored.Token)
	if err != nil {
		return hubConfig{}, fmt.Errorf("hub: token: %w", err)
	}
	validators, err := nativecommon.Addresses(crypto.ValidatorPrefix, stored.Validators)
	if err != nil {
		return hubConfig{}, fmt.Errorf("hub: validators: %w", err)
	}
	rate, overflow := uint256.FromBig(stored.Rate)
	if overflow {
		return hubConfig{}, types.ErrDecimalOverflow
	}
	return hubConfig{
		creator:    creator,
		token:      token,
		denom:      stored.Denom,
		rate:       types.NewDecimalFromAtomics(rate),
		validators: validators,
	}, nil
}
