package heating

import (
	"fmt"

	"heatingcontrol/internal/state"
)

// GlobalEntities names the house-wide control entities
type GlobalEntities struct {
	Mode                string
	DayNight            string
	VacationTemperature string
	SomebodyHome        string
}

// Entities returns the configured ids, skipping empty ones
func (g GlobalEntities) Entities() []string {
	var ids []string
	for _, id := range []string{g.Mode, g.DayNight, g.VacationTemperature, g.SomebodyHome} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// GlobalState is the house-wide control state read at the start of a pass.
// Only the mode is mandatory; the remaining fields carry their own read
// error so that a broken entity only affects the rooms that need it.
type GlobalState struct {
	Mode Mode

	Day    bool
	DayErr error

	VacationTemperature float64
	VacationErr         error

	SomebodyHome    bool
	SomebodyHomeErr error
}

// ReadGlobalState reads the global control entities from r. It fails only
// when the mode cannot be determined.
func ReadGlobalState(r state.Reader, entities GlobalEntities) (GlobalState, error) {
	var gs GlobalState

	raw, err := r.ReadValue(entities.Mode)
	if err != nil {
		return gs, fmt.Errorf("failed to read heating mode: %w", err)
	}
	gs.Mode, err = ParseMode(raw)
	if err != nil {
		return gs, err
	}

	gs.Day, gs.DayErr = state.Bool(r, entities.DayNight)
	gs.VacationTemperature, gs.VacationErr = state.Number(r, entities.VacationTemperature)
	if entities.SomebodyHome != "" {
		gs.SomebodyHome, gs.SomebodyHomeErr = state.Bool(r, entities.SomebodyHome)
	}

	return gs, nil
}
