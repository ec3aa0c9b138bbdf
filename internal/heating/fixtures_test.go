package heating

import (
	"sync"

	"heatingcontrol/internal/state"
)

var testGlobals = GlobalEntities{
	Mode:                "input_select.heating_mode",
	DayNight:            "input_boolean.day",
	VacationTemperature: "input_number.vacation_temperature",
	SomebodyHome:        "input_boolean.somebody_home",
}

func bedroom() Room {
	return Room{
		Name:             "Bedroom",
		SensorID:         "sensor.bedroom_temperature",
		DayTargetID:      "input_number.bedroom_day",
		NightTargetID:    "input_number.bedroom_night",
		ValveIDs:         []string{"switch.bedroom_valve"},
		ManualOverrideID: "input_boolean.bedroom_manual",
	}
}

func kitchen() Room {
	return Room{
		Name:          "Kitchen",
		SensorID:      "sensor.kitchen_temperature",
		DayTargetID:   "input_number.kitchen_day",
		NightTargetID: "input_number.kitchen_night",
		ValveIDs:      []string{"switch.kitchen_valve_1", "switch.kitchen_valve_2"},
	}
}

func livingRoom() Room {
	return Room{
		Name:          "Living Room",
		SensorID:      "sensor.living_temperature",
		DayTargetID:   "input_number.living_day",
		NightTargetID: "input_number.living_night",
		ValveIDs:      []string{"switch.living_valve"},
	}
}

// houseState is a healthy daytime house with heating on
func houseState() map[string]string {
	return map[string]string{
		"input_select.heating_mode":         "on",
		"input_boolean.day":                 "on",
		"input_number.vacation_temperature": "16.0",
		"input_boolean.somebody_home":       "on",

		"sensor.bedroom_temperature":   "20.5",
		"input_number.bedroom_day":     "21.0",
		"input_number.bedroom_night":   "18.0",
		"input_boolean.bedroom_manual": "off",

		"sensor.kitchen_temperature": "19.0",
		"input_number.kitchen_day":   "20.0",
		"input_number.kitchen_night": "17.0",

		"sensor.living_temperature": "22.0",
		"input_number.living_day":   "21.5",
		"input_number.living_night": "18.5",
	}
}

type recordingActuator struct {
	mu       sync.Mutex
	commands []Command
	failFor  map[string]error
}

func (a *recordingActuator) Command(entityID string, action Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.failFor[entityID]
	a.commands = append(a.commands, Command{EntityID: entityID, Action: action, Err: err})
	return err
}

func (a *recordingActuator) For(entityID string) []Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	var actions []Action
	for _, c := range a.commands {
		if c.EntityID == entityID {
			actions = append(actions, c.Action)
		}
	}
	return actions
}

func (a *recordingActuator) All() []Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Command(nil), a.commands...)
}

func snapshot(values map[string]string) *state.Snapshot {
	return state.NewSnapshot(values)
}
