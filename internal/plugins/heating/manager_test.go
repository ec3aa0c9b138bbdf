package heating

import (
	"errors"
	"testing"
	"time"

	"heatingcontrol/internal/clock"
	"heatingcontrol/internal/ha"
	"heatingcontrol/internal/heating"
	"heatingcontrol/internal/metrics"
	"heatingcontrol/internal/shadowstate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartRunsInitialPass(t *testing.T) {
	mock := ha.NewMockClient()
	seedHouse(mock)

	m := newTestManager(t, mock, false)
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.bedroom_valve"))
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.kitchen_valve_window"))
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.kitchen_valve_door"))

	shadow := m.GetShadowState()
	assert.Equal(t, "all", shadow.Outputs.LastPass.Trigger)
	assert.Equal(t, "on", shadow.Outputs.Mode)
	assert.Equal(t, "turn_on", shadow.Outputs.Rooms["Bedroom"].Action)
	assert.Equal(t, "19.0", shadow.Inputs.Current["sensor.bedroom_temperature"])
	assert.Equal(t, "19.0", shadow.Inputs.AtLastAction["sensor.bedroom_temperature"])
}

func TestManager_SubscribesToConfiguredEntities(t *testing.T) {
	_, mock := startTestManager(t)

	for _, id := range []string{
		"input_select.heating_mode",
		"input_boolean.heating_day",
		"input_boolean.somebody_home",
		"input_number.heating_vacation_temperature",
		"sensor.bedroom_temperature",
		"input_number.bedroom_day",
		"input_number.bedroom_night",
		"input_boolean.bedroom_manual",
		"sensor.kitchen_temperature",
	} {
		assert.Equal(t, 1, mock.SubscriberCount(id), id)
	}
	assert.Equal(t, 0, mock.SubscriberCount("switch.bedroom_valve"), "valves are not watched")
}

func TestManager_SensorChangeOnlyTouchesItsRoom(t *testing.T) {
	m, mock := startTestManager(t)

	mock.SetState("sensor.kitchen_temperature", "18.0", nil)

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.kitchen_valve_door")) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.kitchen_valve_window"))
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.kitchen_valve_door"))
	assert.Empty(t, servicesFor(mock, "switch.bedroom_valve"))

	require.Eventually(t, func() bool {
		return m.GetShadowState().Outputs.LastPass.Trigger == "sensor:sensor.kitchen_temperature"
	}, waitFor, tick)
}

func TestManager_TargetChangeTriggersScheduledRoom(t *testing.T) {
	_, mock := startTestManager(t)

	mock.SetState("input_number.kitchen_day", "23.0", nil)

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.kitchen_valve_door")) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.kitchen_valve_door"))
	assert.Empty(t, servicesFor(mock, "switch.bedroom_valve"))
}

func TestManager_ModeOffTurnsEverythingOff(t *testing.T) {
	_, mock := startTestManager(t)

	mock.SetState("input_select.heating_mode", "off", nil)

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.bedroom_valve")) == 1 &&
			len(servicesFor(mock, "switch.kitchen_valve_door")) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.bedroom_valve"))
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.kitchen_valve_window"))
}

func TestManager_ManualOverrideWinsOverModeOff(t *testing.T) {
	m, mock := startTestManager(t)

	mock.SetState("input_boolean.bedroom_manual", "on", nil)
	mock.SetState("input_select.heating_mode", "off", nil)

	require.Eventually(t, func() bool {
		return m.GetShadowState().Outputs.Mode == "off"
	}, waitFor, tick)
	assert.Empty(t, servicesFor(mock, "switch.bedroom_valve"))
	assert.Equal(t, "manual_override", m.GetShadowState().Outputs.Rooms["Bedroom"].SkipReason)
}

func TestManager_VacationTemperatureIgnoredOutsideVacation(t *testing.T) {
	m, mock := startTestManager(t)

	mock.SetState("input_number.heating_vacation_temperature", "25.0", nil)
	// The sensor change gives us a pass to wait for.
	mock.SetState("sensor.kitchen_temperature", "18.0", nil)

	require.Eventually(t, func() bool {
		return m.GetShadowState().Outputs.LastPass.Trigger == "sensor:sensor.kitchen_temperature"
	}, waitFor, tick)
	assert.Empty(t, servicesFor(mock, "switch.bedroom_valve"), "no full pass outside vacation mode")
}

func TestManager_VacationTemperatureInVacationMode(t *testing.T) {
	_, mock := startTestManager(t)

	mock.SetState("input_select.heating_mode", "vacation", nil)
	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.bedroom_valve")) == 1
	}, waitFor, tick)
	// 16 degrees vacation target: everything off
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.bedroom_valve"))
	mock.ClearServiceCalls()

	mock.SetState("input_number.heating_vacation_temperature", "25.0", nil)

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.bedroom_valve")) == 1 &&
			len(servicesFor(mock, "switch.kitchen_valve_door")) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.bedroom_valve"))
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.kitchen_valve_door"))
}

func TestManager_DayNightChangeUsesNightTargets(t *testing.T) {
	_, mock := startTestManager(t)

	mock.SetState("input_boolean.heating_day", "off", nil)

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.bedroom_valve")) == 1
	}, waitFor, tick)
	// night target 17 <= 19
	assert.Equal(t, []string{"switch.turn_off"}, servicesFor(mock, "switch.bedroom_valve"))
}

func TestManager_ReconnectRunsFullPass(t *testing.T) {
	_, mock := startTestManager(t)

	mock.SimulateReconnect()

	require.Eventually(t, func() bool {
		return len(servicesFor(mock, "switch.bedroom_valve")) == 1 &&
			len(servicesFor(mock, "switch.kitchen_valve_door")) == 1
	}, waitFor, tick)
}

func TestManager_ReadOnlyIssuesNoCommands(t *testing.T) {
	mock := ha.NewMockClient()
	seedHouse(mock)

	m := newTestManager(t, mock, true)
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Empty(t, mock.GetServiceCalls())
	// The decision is still recorded.
	assert.Equal(t, "turn_on", m.GetShadowState().Outputs.Rooms["Bedroom"].Action)
}

func TestManager_StartFailsOnUnknownEntity(t *testing.T) {
	mock := ha.NewMockClient()
	seedHouse(mock)
	mock.RemoveState("switch.kitchen_valve_door")

	m := newTestManager(t, mock, false)
	err := m.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, heating.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "switch.kitchen_valve_door")
	assert.Empty(t, mock.GetServiceCalls())
	assert.Equal(t, 0, mock.SubscriberCount("sensor.bedroom_temperature"))
}

func TestManager_StartFailsWithoutStates(t *testing.T) {
	mock := ha.NewMockClient()
	mock.SetGetStatesError(ha.ErrNotConnected)

	m := newTestManager(t, mock, false)
	err := m.Start()
	assert.ErrorIs(t, err, ha.ErrNotConnected)
}

func TestManager_StartTwice(t *testing.T) {
	m, _ := startTestManager(t)
	assert.Error(t, m.Start())
}

func TestManager_StopUnsubscribes(t *testing.T) {
	mock := ha.NewMockClient()
	seedHouse(mock)

	m := newTestManager(t, mock, false)
	require.NoError(t, m.Start())
	m.Stop()
	m.Stop()

	assert.Equal(t, 0, mock.SubscriberCount("sensor.bedroom_temperature"))
	assert.Equal(t, 0, mock.SubscriberCount("input_select.heating_mode"))

	mock.ClearServiceCalls()
	mock.SimulateReconnect()
	assert.Empty(t, mock.GetServiceCalls())
}

func TestManager_Reset(t *testing.T) {
	m, mock := startTestManager(t)

	require.NoError(t, m.Reset())
	assert.Equal(t, []string{"switch.turn_on"}, servicesFor(mock, "switch.bedroom_valve"))

	mock.SetGetStatesError(errors.New("connection lost"))
	assert.Error(t, m.Reset())
}

func TestManager_EvaluateScopedTrigger(t *testing.T) {
	m, mock := startTestManager(t)

	result := m.Evaluate(heating.ValveChanged("switch.kitchen_valve_door"))
	require.NoError(t, result.Err)
	require.Len(t, result.Rooms, 1)
	assert.Equal(t, "Kitchen", result.Rooms[0].Room)
	assert.Equal(t, heating.TurnOff, result.Rooms[0].Action)
	assert.Empty(t, servicesFor(mock, "switch.bedroom_valve"))
}

func TestManager_EvaluateWithoutStates(t *testing.T) {
	m, mock := startTestManager(t)
	mock.SetGetStatesError(errors.New("connection lost"))

	result := m.Evaluate(heating.FullEvaluation)
	assert.Error(t, result.Err)
	assert.NotEmpty(t, result.ID)
	assert.Empty(t, result.Rooms)
	assert.Empty(t, mock.GetServiceCalls())
	assert.Equal(t, result.ID, m.GetShadowState().Outputs.LastPass.ID)
}

func TestManager_TriggerForAndRooms(t *testing.T) {
	m := newTestManager(t, ha.NewMockClient(), false)

	trigger, ok := m.TriggerFor("sensor.kitchen_temperature")
	require.True(t, ok)
	assert.Equal(t, heating.SensorChanged("sensor.kitchen_temperature"), trigger)

	_, ok = m.TriggerFor("sensor.nowhere")
	assert.False(t, ok)

	rooms := m.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "Bedroom", rooms[0].Name)
	assert.Equal(t, []string{"switch.kitchen_valve_window", "switch.kitchen_valve_door"}, rooms[1].ValveIDs)
}

func TestManager_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	m, mock := startTestManager(t, WithMetrics(met))

	mock.SetState("sensor.kitchen_temperature", "18.0", nil)
	require.Eventually(t, func() bool {
		return m.GetShadowState().Outputs.LastPass.Trigger == "sensor:sensor.kitchen_temperature"
	}, waitFor, tick)

	count, err := testutil.GatherAndCount(reg, "heating_passes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per trigger scope")
}

func TestManager_SharesSubscriptionRegistry(t *testing.T) {
	subs := shadowstate.NewSubscriptionRegistry()
	startTestManager(t, WithSubscriptionRegistry(subs))

	assert.Contains(t, subs.GetHASubscriptions("heating"), "sensor.bedroom_temperature")
}

func TestNewManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(ha.NewMockClient(), nil, nil, false)
	assert.ErrorIs(t, err, heating.ErrConfigInvalid)
}

func TestManager_ShadowTimestampsFollowClock(t *testing.T) {
	start := time.Date(2026, 1, 10, 6, 30, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	m, mock := startTestManager(t, WithClock(clk))

	bedroom := m.GetShadowState().Outputs.Rooms["Bedroom"]
	assert.Equal(t, start, bedroom.LastEvaluated)
	assert.Equal(t, start, bedroom.LastAction)

	clk.Advance(time.Minute)
	mock.SetState("sensor.bedroom_temperature", "19.1", nil)

	require.Eventually(t, func() bool {
		return m.GetShadowState().Outputs.Rooms["Bedroom"].LastEvaluated.Equal(start.Add(time.Minute))
	}, waitFor, tick)
	// 21 > 19.1 + 0.3, so the valve is commanded again
	assert.Equal(t, start.Add(time.Minute), m.GetShadowState().Outputs.Rooms["Bedroom"].LastAction)
}
