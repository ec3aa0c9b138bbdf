package heating

import (
	"testing"
	"time"

	"heatingcontrol/internal/config"
	"heatingcontrol/internal/ha"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfigYAML = `
heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  somebody_home: input_boolean.somebody_home
  temperature_vacation: input_number.heating_vacation_temperature
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
        - switch.kitchen_valve_window
        - switch.kitchen_valve_door
`

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// seedHouse puts a daytime house with heating on into mock. The bedroom is
// cold, the kitchen is warm.
func seedHouse(mock *ha.MockClient) {
	for id, value := range map[string]string{
		"input_select.heating_mode":                 "on",
		"input_boolean.heating_day":                 "on",
		"input_boolean.somebody_home":               "on",
		"input_number.heating_vacation_temperature": "16.0",

		"sensor.bedroom_temperature":   "19.0",
		"input_number.bedroom_day":     "21.0",
		"input_number.bedroom_night":   "17.0",
		"input_boolean.bedroom_manual": "off",
		"switch.bedroom_valve":         "off",

		"sensor.kitchen_temperature":  "22.0",
		"input_number.kitchen_day":    "20.0",
		"input_number.kitchen_night":  "18.0",
		"switch.kitchen_valve_window": "on",
		"switch.kitchen_valve_door":   "on",
	} {
		mock.SetState(id, value, nil)
	}
}

func testConfig(t *testing.T) *config.HeatingConfig {
	t.Helper()
	cfg, err := config.ParseHeatingConfig([]byte(testConfigYAML))
	require.NoError(t, err)
	return cfg
}

func newTestManager(t *testing.T, mock *ha.MockClient, readOnly bool, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(mock, testConfig(t), zap.NewNop(), readOnly, opts...)
	require.NoError(t, err)
	return m
}

// startTestManager seeds the house, starts a manager and clears the calls
// made by the initial pass.
func startTestManager(t *testing.T, opts ...Option) (*Manager, *ha.MockClient) {
	t.Helper()
	mock := ha.NewMockClient()
	seedHouse(mock)

	m := newTestManager(t, mock, false, opts...)
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)

	mock.ClearServiceCalls()
	return m, mock
}

// servicesFor lists "domain.service" for every recorded call on entityID
func servicesFor(mock *ha.MockClient, entityID string) []string {
	var services []string
	for _, call := range mock.GetServiceCalls() {
		if call.EntityID() == entityID {
			services = append(services, call.Domain+"."+call.Service)
		}
	}
	return services
}
