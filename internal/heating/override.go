package heating

import (
	"fmt"

	"heatingcontrol/internal/state"
)

// IsOverridden reports whether the room is under manual control. When the
// override switch cannot be read the room counts as overridden and the
// error wraps ErrOverrideIndeterminate.
func IsOverridden(room Room, r state.Reader) (bool, error) {
	if room.ManualOverrideID == "" {
		return false, nil
	}
	on, err := state.Bool(r, room.ManualOverrideID)
	if err != nil {
		return true, fmt.Errorf("%w: %w", ErrOverrideIndeterminate, err)
	}
	return on, nil
}
