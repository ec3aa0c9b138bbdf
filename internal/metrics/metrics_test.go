package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"heatingcontrol/internal/heating"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePass(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePass(heating.PassResult{
		Trigger: heating.FullEvaluation,
		Rooms: []heating.RoomOutcome{
			{
				Room:    "Kitchen",
				Target:  20.0,
				Current: 19.0,
				Action:  heating.TurnOn,
				Commands: []heating.Command{
					{EntityID: "switch.kitchen_valve_1", Action: heating.TurnOn},
					{EntityID: "switch.kitchen_valve_2", Action: heating.TurnOn, Err: errors.New("offline")},
				},
			},
			{
				Room:    "Bedroom",
				Target:  math.NaN(),
				Current: math.NaN(),
				Skipped: heating.SkipManualOverride,
			},
		},
	}, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("all")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.valveCommands.WithLabelValues("Kitchen", "turn_on", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.valveCommands.WithLabelValues("Kitchen", "turn_on", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomSkips.WithLabelValues("Bedroom", "manual_override")))
	assert.Equal(t, 19.0, testutil.ToFloat64(m.currentTemp.WithLabelValues("Kitchen")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.targetTemp.WithLabelValues("Kitchen")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.currentTemp), "skipped rooms leave no gauge")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.passErrors))
}

func TestObservePass_Aborted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePass(heating.PassResult{
		Trigger: heating.SensorChanged("sensor.kitchen_temperature"),
		Err:     heating.ErrUnknownMode,
	}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("sensor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passErrors))
}

func TestTriggerQueued(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TriggerQueued(false)
	m.TriggerQueued(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queuedTriggers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalescedTriggers))
}

func TestCircuitBreakerState(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetCircuitBreakerState("home-assistant", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("home-assistant")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePass(heating.PassResult{}, time.Second)
		m.SetCircuitBreakerState("x", 1)
		m.TriggerQueued(true)
	})
}
