package metrics

import (
	"math"
	"time"

	"heatingcontrol/internal/heating"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the controller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	passes            *prometheus.CounterVec
	passErrors        prometheus.Counter
	passDuration      prometheus.Histogram
	valveCommands     *prometheus.CounterVec
	roomSkips         *prometheus.CounterVec
	currentTemp       *prometheus.GaugeVec
	targetTemp        *prometheus.GaugeVec
	breakerState      *prometheus.GaugeVec
	queuedTriggers    prometheus.Counter
	coalescedTriggers prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heating_passes_total",
			Help: "Evaluation passes run, by trigger kind.",
		}, []string{"scope"}),
		passErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heating_pass_errors_total",
			Help: "Passes aborted because the heating mode could not be determined.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "heating_pass_duration_seconds",
			Help:    "Wall time of evaluation passes including the state snapshot.",
			Buckets: prometheus.DefBuckets,
		}),
		valveCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heating_valve_commands_total",
			Help: "Valve commands issued, by room, action and result.",
		}, []string{"room", "action", "result"}),
		roomSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heating_room_skips_total",
			Help: "Rooms left alone during a pass, by reason.",
		}, []string{"room", "reason"}),
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heating_room_current_temperature_celsius",
			Help: "Last temperature read for each room.",
		}, []string{"room"}),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heating_room_target_temperature_celsius",
			Help: "Last resolved target temperature for each room.",
		}, []string{"room"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heating_actuator_breaker_state",
			Help: "Actuator circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		queuedTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heating_triggers_queued_total",
			Help: "State change triggers accepted into the evaluation queue.",
		}),
		coalescedTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heating_triggers_coalesced_total",
			Help: "Triggers merged into an already pending evaluation.",
		}),
	}

	reg.MustRegister(
		m.passes,
		m.passErrors,
		m.passDuration,
		m.valveCommands,
		m.roomSkips,
		m.currentTemp,
		m.targetTemp,
		m.breakerState,
		m.queuedTriggers,
		m.coalescedTriggers,
	)

	return m
}

// ObservePass records the outcome of one evaluation pass
func (m *Metrics) ObservePass(result heating.PassResult, duration time.Duration) {
	if m == nil {
		return
	}

	m.passes.WithLabelValues(result.Trigger.Kind.String()).Inc()
	m.passDuration.Observe(duration.Seconds())
	if result.Err != nil {
		m.passErrors.Inc()
		return
	}

	for _, room := range result.Rooms {
		if room.Skipped != heating.SkipNone {
			m.roomSkips.WithLabelValues(room.Room, string(room.Skipped)).Inc()
		}
		if !math.IsNaN(room.Current) {
			m.currentTemp.WithLabelValues(room.Room).Set(room.Current)
		}
		if !math.IsNaN(room.Target) {
			m.targetTemp.WithLabelValues(room.Room).Set(room.Target)
		}
		for _, cmd := range room.Commands {
			outcome := "ok"
			if cmd.Err != nil {
				outcome = "error"
			}
			m.valveCommands.WithLabelValues(room.Room, cmd.Action.String(), outcome).Inc()
		}
	}
}

// SetCircuitBreakerState records a breaker transition
func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(target).Set(state)
}

// TriggerQueued counts a trigger handed to the evaluation queue. coalesced
// is true when it merged into work that was already pending.
func (m *Metrics) TriggerQueued(coalesced bool) {
	if m == nil {
		return
	}
	m.queuedTriggers.Inc()
	if coalesced {
		m.coalescedTriggers.Inc()
	}
}
