package heating

import "math"

// DefaultHysteresis is the width of the dead band in degrees
const DefaultHysteresis = 0.3

// Action is what to do with a room's valves
type Action int

const (
	NoAction Action = iota
	TurnOn
	TurnOff
)

func (a Action) String() string {
	switch a {
	case TurnOn:
		return "turn_on"
	case TurnOff:
		return "turn_off"
	default:
		return "none"
	}
}

// Decide applies the on/off rule with a dead band of width hysteresis above
// the current temperature. Inside the band the valve keeps whatever state it
// already has, so NoAction must never be turned into a command.
func Decide(target, current, hysteresis float64) Action {
	if !finite(target) || !finite(current) {
		return NoAction
	}
	switch {
	case target > current+hysteresis:
		return TurnOn
	case target <= current:
		return TurnOff
	default:
		return NoAction
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
