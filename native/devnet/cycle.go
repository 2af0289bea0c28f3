package devnet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/leverage"
	"leverageloop/observability"
)

// CycleResult reports one deposit transaction and the loop it drove.
type CycleResult struct {
	Receipt *ledger.Receipt `json:"receipt"`
	// Steps lists the controller commands in delivery order.
	Steps []string `json:"steps"`
	// Loops counts completed borrow/swap iterations.
	Loops      int            `json:"loops"`
	Redeposits int            `json:"redeposits"`
	Phase      leverage.Phase `json:"-"`
	PhaseName  string         `json:"phase"`
	StopReason string         `json:"stop_reason,omitempty"`
	Position   Position       `json:"position"`
}

// Cycle deposits amount of the accepted denomination from sender and
// summarises the resulting call tree. A reverted deposit returns its receipt
// together with the error.
func (d *Devnet) Cycle(ctx context.Context, sender crypto.Address, amount *uint256.Int) (*CycleResult, error) {
	msg, err := json.Marshal(leverage.EncodeCommand(leverage.Deposit{}))
	if err != nil {
		return nil, err
	}
	funds := types.Coins{types.NewCoin(leverage.AcceptedDenom, amount)}
	receipt, err := d.Ledger.Execute(ctx, sender, d.Leverage, msg, funds)
	if err != nil {
		return &CycleResult{Receipt: receipt}, err
	}
	result, err := Summarize(receipt, d.Leverage)
	if err != nil {
		return nil, err
	}
	if result.Position, err = d.Position(ctx); err != nil {
		return nil, err
	}
	observability.Events().RecordLoop(result.Loops)
	d.logger.Info("leverage cycle",
		slog.String("tx", receipt.Hash),
		slog.String("sender", sender.String()),
		slog.String("amount", amount.Dec()),
		slog.Int("calls", len(receipt.Trace)),
		slog.Int("loops", result.Loops),
		slog.String("phase", result.PhaseName))
	return result, nil
}

// Summarize extracts the controller steps of receipt: their order, the loop
// count and the phase of the last step.
func Summarize(receipt *ledger.Receipt, controller crypto.Address) (*CycleResult, error) {
	result := &CycleResult{Receipt: receipt, Phase: leverage.PhaseIdle}
	for _, entry := range receipt.Trace {
		if !entry.Target.Equal(controller) || entry.Action == "send" {
			continue
		}
		result.Steps = append(result.Steps, entry.Action)
		switch entry.Action {
		case "swap":
			result.Loops++
		case "redeposit":
			result.Redeposits++
		}
		for _, attr := range entry.Attributes {
			switch attr.Key {
			case "phase":
				phase, err := leverage.ParsePhase(attr.Value)
				if err != nil {
					return nil, fmt.Errorf("devnet: trace entry %d: %w", entry.Index, err)
				}
				result.Phase = phase
			case "stop_reason":
				result.StopReason = attr.Value
			}
		}
	}
	result.PhaseName = result.Phase.String()
	return result, nil
}
