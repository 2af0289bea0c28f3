package leverage

import "fmt"

// Phase is the position of the controller in a leverage cycle. Every step
// reports the phase it leaves the cycle in.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDeposited
	PhaseCollateralized
	PhaseBorrowed
	PhaseSwapped
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDeposited:
		return "deposited"
	case PhaseCollateralized:
		return "collateralized"
	case PhaseBorrowed:
		return "borrowed"
	case PhaseSwapped:
		return "swapped"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseIdle; p <= PhaseStopped; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("leverage: unknown phase %q", s)
}

// Terminal reports whether no further step follows.
func (p Phase) Terminal() bool {
	return p == PhaseStopped
}

// stepFrom returns the phase a command may be delivered in. Continue→Idle is
// folded into Redeposit, which starts from Swapped.
func stepFrom(cmd Command) Phase {
	switch cmd.(type) {
	case Deposit:
		return PhaseIdle
	case DepositCollateral:
		return PhaseDeposited
	case Borrow:
		return PhaseCollateralized
	case Swap:
		return PhaseBorrowed
	case Redeposit:
		return PhaseSwapped
	default:
		return PhaseStopped
	}
}
