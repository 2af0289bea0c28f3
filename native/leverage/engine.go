package leverage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"leverageloop/core/events"
	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	nativecommon "leverageloop/native/common"
)

const moduleName = "leverage"

// Engine is the leverage loop controller. It keeps no position of its own:
// every step re-reads the collaborating contracts and emits the next batch of
// calls, ending with a self-call that resumes the cycle after they run.
type Engine struct {
	gateway GatewayFactory
	pauses  nativecommon.PauseView
	logger  *slog.Logger
}

// NewEngine constructs a controller that reads through ledger queries.
func NewEngine() *Engine {
	return &Engine{gateway: NewGateway}
}

// SetGateway replaces the read side, mainly for tests.
func (e *Engine) SetGateway(factory GatewayFactory) {
	if e == nil {
		return
	}
	if factory == nil {
		factory = NewGateway
	}
	e.gateway = factory
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

func (e *Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// Instantiate stores the configuration record. It can only succeed once.
func (e *Engine) Instantiate(_ context.Context, deps ledger.Deps, env types.Env, _ types.MessageInfo, msg []byte) (*types.Response, error) {
	var init InstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := init.Config.Validate(); err != nil {
		return nil, err
	}
	if err := saveConfig(deps.Store, init.Config); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("contract", env.Contract.Address.String()), nil
}

// Execute routes a command to its step.
func (e *Engine) Execute(ctx context.Context, deps ledger.Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, fmt.Errorf("leverage: %w", err)
	}
	cmd, err := DecodeCommand(msg)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(deps.Store)
	if err != nil {
		return nil, err
	}
	s := step{
		cfg:     cfg,
		env:     env,
		info:    info,
		gateway: e.gateway(deps.Querier, cfg),
		resp:    types.NewResponse(),
	}
	s.resp.AddAttribute("action", CommandName(cmd))
	s.resp.AddAttribute("from", stepFrom(cmd).String())

	var phase Phase
	switch c := cmd.(type) {
	case Deposit:
		phase, err = s.deposit(ctx)
	case DepositCollateral:
		phase, err = s.depositCollateral(ctx)
	case Borrow:
		phase, err = s.borrow(ctx)
	case Swap:
		phase, err = s.swap(c.Amount)
	case Redeposit:
		phase, err = s.redeposit(ctx)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return nil, err
	}
	s.resp.AddAttribute("phase", phase.String())
	e.log().Debug("leverage step",
		slog.String("command", CommandName(cmd)),
		slog.String("phase", phase.String()),
		slog.Int("calls", len(s.resp.Calls)))
	return s.resp, nil
}

// step carries one invocation.
type step struct {
	cfg     Config
	env     types.Env
	info    types.MessageInfo
	gateway Gateway
	resp    *types.Response
}

func (s *step) requireSelf() error {
	if !s.info.Sender.Equal(s.env.Contract.Address) {
		return fmt.Errorf("%w: sender %s is not %s", ErrUnauthorized, s.info.Sender, s.env.Contract.Address)
	}
	return nil
}

func (s *step) self() crypto.Address {
	return s.env.Contract.Address
}

func (s *step) emit(calls ...types.Call) {
	for _, c := range calls {
		s.resp.AddCall(c)
	}
}

func (s *step) event(e events.Typed) {
	s.resp.AddEvent(e.Event())
}

func (s *step) stop(at, reason string) (Phase, error) {
	s.resp.AddAttribute("stop_reason", reason)
	s.event(events.LeverageStopped{Contract: s.self(), Step: at, Reason: reason})
	return PhaseStopped, nil
}

func (s *step) deposit(context.Context) (Phase, error) {
	if len(s.info.Funds) != 1 || s.info.Funds[0].Denom != AcceptedDenom || s.info.Funds[0].IsZero() {
		return PhaseIdle, depositValidationError()
	}
	received := s.info.Funds[0]
	calls, err := bondCalls(s.cfg, s.self(), received)
	if err != nil {
		return PhaseIdle, err
	}
	s.emit(calls...)
	s.resp.AddAttribute("deposited", received.String())
	s.event(events.LeverageDeposited{
		Contract:  s.self(),
		Sender:    s.info.Sender,
		Amount:    received.Amount,
		Denom:     received.Denom,
		Validator: s.cfg.PreferredValidator.String(),
		Source:    events.SourceDeposit,
	})
	return PhaseDeposited, nil
}

func (s *step) depositCollateral(ctx context.Context) (Phase, error) {
	if err := s.requireSelf(); err != nil {
		return PhaseDeposited, err
	}
	bonded, err := s.gateway.TokenBalance(ctx, s.self())
	if err != nil {
		return PhaseDeposited, fmt.Errorf("leverage: query derivative balance: %w", err)
	}
	if bonded.IsZero() {
		return s.stop("deposit_collateral", "no derivative balance")
	}
	calls, err := collateralCalls(s.cfg, s.self(), bonded)
	if err != nil {
		return PhaseDeposited, err
	}
	s.emit(calls...)
	s.resp.AddAttribute("collateral", bonded.Dec())
	s.event(events.LeverageCollateralized{
		Contract: s.self(),
		Token:    s.cfg.Token,
		Custody:  s.cfg.Custody,
		Amount:   bonded,
	})
	return PhaseCollateralized, nil
}

func (s *step) borrow(ctx context.Context) (Phase, error) {
	if err := s.requireSelf(); err != nil {
		return PhaseCollateralized, err
	}
	blockTime, blockHeight := s.env.Block.Time, s.env.Block.Height
	possible, err := possibleBorrow(ctx, s.gateway, s.self(), &blockTime, &blockHeight)
	if err != nil {
		return PhaseCollateralized, err
	}
	if possible.BorrowAmount.IsZero() {
		return s.stop("borrow", "no borrow capacity")
	}
	rate, taxCap, err := s.gateway.Tax(ctx, StableDenom)
	if err != nil {
		return PhaseCollateralized, fmt.Errorf("leverage: %w", err)
	}
	net, err := DeductTax(possible.BorrowAmount, rate, taxCap)
	if err != nil {
		return PhaseCollateralized, fmt.Errorf("leverage: deduct tax: %w", err)
	}
	calls, err := borrowCalls(s.cfg, s.self(), possible.BorrowAmount, net)
	if err != nil {
		return PhaseCollateralized, err
	}
	s.emit(calls...)
	s.resp.AddAttribute("borrow_amount", possible.BorrowAmount.Dec())
	s.resp.AddAttribute("net_amount", net.Dec())
	s.event(events.LeverageBorrowed{
		Contract:        s.self(),
		BorrowLimit:     possible.BorrowLimit,
		AlreadyBorrowed: possible.AlreadyBorrowed,
		Gross:           possible.BorrowAmount,
		Net:             net,
	})
	return PhaseBorrowed, nil
}

func (s *step) swap(amount *uint256.Int) (Phase, error) {
	if err := s.requireSelf(); err != nil {
		return PhaseBorrowed, err
	}
	swapAmount := SwapAfterSlippage(amount)
	if swapAmount.IsZero() {
		return s.stop("swap", "nothing to swap")
	}
	call, err := swapCall(s.cfg, swapAmount)
	if err != nil {
		return PhaseBorrowed, err
	}
	s.emit(call)
	s.resp.AddAttribute("swap_amount", swapAmount.Dec())

	more := ContinueLoop(swapAmount, StopThreshold())
	s.event(events.LeverageSwapped{
		Contract:   s.self(),
		Received:   amount,
		SwapAmount: swapAmount,
		Continue:   more,
	})
	if !more {
		return s.stop("swap", "below stop threshold")
	}
	next, err := selfCall(s.self(), Redeposit{})
	if err != nil {
		return PhaseBorrowed, err
	}
	s.emit(next)
	return PhaseSwapped, nil
}

func (s *step) redeposit(ctx context.Context) (Phase, error) {
	if err := s.requireSelf(); err != nil {
		return PhaseSwapped, err
	}
	balance, err := s.gateway.NativeBalance(ctx, s.self(), AcceptedDenom)
	if err != nil {
		return PhaseSwapped, fmt.Errorf("leverage: query native balance: %w", err)
	}
	if balance.IsZero() {
		return s.stop("redeposit", "no native balance")
	}
	coin := types.NewCoin(AcceptedDenom, balance)
	calls, err := bondCalls(s.cfg, s.self(), coin)
	if err != nil {
		return PhaseSwapped, err
	}
	s.emit(calls...)
	s.resp.AddAttribute("deposited", coin.String())
	s.event(events.LeverageDeposited{
		Contract:  s.self(),
		Amount:    balance,
		Denom:     AcceptedDenom,
		Validator: s.cfg.PreferredValidator.String(),
		Source:    events.SourceRedeposit,
	})
	return PhaseDeposited, nil
}

func possibleBorrow(ctx context.Context, gw Gateway, target crypto.Address, blockTime, blockHeight *uint64) (PossibleBorrowResponse, error) {
	limit, err := gw.BorrowLimit(ctx, target, blockTime)
	if err != nil {
		return PossibleBorrowResponse{}, fmt.Errorf("leverage: query borrow limit: %w", err)
	}
	loan, err := gw.LoanAmount(ctx, target, blockHeight)
	if err != nil {
		return PossibleBorrowResponse{}, fmt.Errorf("leverage: query loan amount: %w", err)
	}
	amount, err := PossibleBorrow(limit, loan, LTVPercent)
	if err != nil {
		return PossibleBorrowResponse{}, err
	}
	return PossibleBorrowResponse{BorrowLimit: limit, AlreadyBorrowed: loan, BorrowAmount: amount}, nil
}
