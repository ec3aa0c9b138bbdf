package heating

import (
	"fmt"

	"heatingcontrol/internal/state"
)

// ResolveTarget returns the temperature room should reach. In vacation mode
// every room gets the vacation temperature; otherwise the room's day or
// night target applies.
func ResolveTarget(room Room, gs GlobalState, r state.Reader) (float64, error) {
	if gs.Mode == ModeVacation {
		if gs.VacationErr != nil {
			return 0, fmt.Errorf("failed to read vacation temperature: %w", gs.VacationErr)
		}
		return gs.VacationTemperature, nil
	}

	if gs.DayErr != nil {
		return 0, fmt.Errorf("failed to read day/night: %w", gs.DayErr)
	}

	entityID := room.NightTargetID
	if gs.Day {
		entityID = room.DayTargetID
	}

	target, err := state.Number(r, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to read target temperature: %w", err)
	}
	return target, nil
}
