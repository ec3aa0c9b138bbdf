package config

import (
	"os"
	"path/filepath"
	"testing"

	"heatingcontrol/internal/heating"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHeatingYAML = `heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  somebody_home: input_boolean.somebody_home
  temperature_vacation: input_number.vacation_temperature
  rooms:
    - room_name: Bedroom
      sensor: sensor.bedroom_temperature
      temperature_day: input_number.bedroom_day
      temperature_night: input_number.bedroom_night
      heating_valves: switch.bedroom_valve
      manual_mode: input_boolean.bedroom_manual
    - room_name: Kitchen
      sensor: sensor.kitchen_temperature
      temperature_day: input_number.kitchen_day
      temperature_night: input_number.kitchen_night
      heating_valves:
        - switch.kitchen_valve_1
        - switch.kitchen_valve_2
`

func TestParseHeatingConfig(t *testing.T) {
	cfg, err := ParseHeatingConfig([]byte(validHeatingYAML))
	require.NoError(t, err)

	assert.Equal(t, heating.GlobalEntities{
		Mode:                "input_select.heating_mode",
		DayNight:            "input_boolean.heating_day",
		VacationTemperature: "input_number.vacation_temperature",
		SomebodyHome:        "input_boolean.somebody_home",
	}, cfg.Globals())
	assert.Equal(t, heating.DefaultHysteresis, cfg.HysteresisValue())

	rooms := cfg.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, heating.Room{
		Name:             "Bedroom",
		SensorID:         "sensor.bedroom_temperature",
		DayTargetID:      "input_number.bedroom_day",
		NightTargetID:    "input_number.bedroom_night",
		ValveIDs:         []string{"switch.bedroom_valve"},
		ManualOverrideID: "input_boolean.bedroom_manual",
	}, rooms[0])
	assert.Equal(t, []string{"switch.kitchen_valve_1", "switch.kitchen_valve_2"}, rooms[1].ValveIDs)
	assert.Empty(t, rooms[1].ManualOverrideID)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
}

func TestParseHeatingConfig_Hysteresis(t *testing.T) {
	cfg, err := ParseHeatingConfig([]byte(validHeatingYAML + "  hysteresis: 0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.HysteresisValue())

	_, err = ParseHeatingConfig([]byte(validHeatingYAML + "  hysteresis: -1\n"))
	require.ErrorIs(t, err, heating.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "hysteresis")
}

func TestParseHeatingConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msgs []string
	}{
		{
			name: "not yaml",
			yaml: "heating: [",
			msgs: []string{"failed to parse heating config"},
		},
		{
			name: "empty",
			yaml: "heating: {}",
			msgs: []string{
				"heating_mode is required",
				"day_night is required",
				"temperature_vacation is required",
				"at least one room is required",
			},
		},
		{
			name: "bad room",
			yaml: `heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  temperature_vacation: input_number.vacation_temperature
  rooms:
    - room_name: Attic
      sensor: attic temperature
      temperature_day: input_number.attic_day
      heating_valves: []
`,
			msgs: []string{
				`rooms[0] (Attic).sensor: "attic temperature" is not an entity id`,
				"rooms[0] (Attic).temperature_night is required",
				"rooms[0] (Attic).heating_valves: at least one valve is required",
			},
		},
		{
			name: "nameless room",
			yaml: `heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  temperature_vacation: input_number.vacation_temperature
  rooms:
    - sensor: sensor.x
      temperature_day: input_number.x_day
      temperature_night: input_number.x_night
      heating_valves: switch.x
`,
			msgs: []string{"rooms[0]: room_name is required"},
		},
		{
			name: "non-string valve",
			yaml: `heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  temperature_vacation: input_number.vacation_temperature
  rooms:
    - room_name: Hall
      sensor: sensor.hall
      temperature_day: input_number.hall_day
      temperature_night: input_number.hall_night
      heating_valves: [switch.hall_a, 42, ""]
`,
			msgs: []string{
				"rooms[0] (Hall).heating_valves[1]: 42 is not an entity id",
				"rooms[0] (Hall).heating_valves[2]: empty entry",
			},
		},
		{
			name: "valves not a list",
			yaml: `heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  temperature_vacation: input_number.vacation_temperature
  rooms:
    - room_name: Hall
      sensor: sensor.hall
      temperature_day: input_number.hall_day
      temperature_night: input_number.hall_night
      heating_valves: 7
`,
			msgs: []string{"rooms[0] (Hall).heating_valves: expected an entity id or a list of entity ids, got 7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseHeatingConfig([]byte(tt.yaml))
			assert.Nil(t, cfg)
			require.ErrorIs(t, err, heating.ErrConfigInvalid)
			for _, msg := range tt.msgs {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestHeatingConfig_RegistryRejectsSharedSensor(t *testing.T) {
	cfg, err := ParseHeatingConfig([]byte(validHeatingYAML + `    - room_name: Study
      sensor: sensor.kitchen_temperature
      temperature_day: input_number.study_day
      temperature_night: input_number.study_night
      heating_valves: switch.study_valve
`))
	require.NoError(t, err)

	_, err = cfg.Registry()
	assert.ErrorIs(t, err, heating.ErrConfigInvalid)
}

func TestHeatingConfig_Entities(t *testing.T) {
	cfg, err := ParseHeatingConfig([]byte(validHeatingYAML))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"input_select.heating_mode",
		"input_boolean.heating_day",
		"input_number.vacation_temperature",
		"input_boolean.somebody_home",
		"sensor.bedroom_temperature",
		"input_number.bedroom_day",
		"input_number.bedroom_night",
		"input_boolean.bedroom_manual",
		"switch.bedroom_valve",
		"sensor.kitchen_temperature",
		"input_number.kitchen_day",
		"input_number.kitchen_night",
		"switch.kitchen_valve_1",
		"switch.kitchen_valve_2",
	}, cfg.Entities())
}

func TestHeatingConfig_ValidateEntities(t *testing.T) {
	cfg, err := ParseHeatingConfig([]byte(validHeatingYAML))
	require.NoError(t, err)

	all := func(string) bool { return true }
	assert.NoError(t, cfg.ValidateEntities(all))

	missingValve := func(id string) bool { return id != "switch.kitchen_valve_2" }
	err = cfg.ValidateEntities(missingValve)
	require.ErrorIs(t, err, heating.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "switch.kitchen_valve_2")
}

func TestLoadHeatingConfig_MissingFile(t *testing.T) {
	_, err := LoadHeatingConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInterfaceToStringSlice(t *testing.T) {
	assert.Equal(t, []string{}, interfaceToStringSlice(nil))
	assert.Equal(t, []string{}, interfaceToStringSlice(""))
	assert.Equal(t, []string{"switch.a"}, interfaceToStringSlice("switch.a"))
	assert.Equal(t, []string{"switch.a", "switch.b"}, interfaceToStringSlice([]interface{}{"switch.a", "", "switch.b"}))
	assert.Equal(t, []string{"switch.c"}, interfaceToStringSlice([]string{"switch.c"}))
	assert.Equal(t, []string{}, interfaceToStringSlice(42))
}

func TestInvalidListItems(t *testing.T) {
	assert.Empty(t, invalidListItems("valves", nil))
	assert.Empty(t, invalidListItems("valves", "switch.a"))
	assert.Empty(t, invalidListItems("valves", []interface{}{"switch.a", "switch.b"}))

	errs := invalidListItems("valves", []interface{}{"switch.a", 42, true})
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "valves[1]: 42 is not an entity id")
	assert.EqualError(t, errs[1], "valves[2]: true is not an entity id")
}
