package heating

import (
	"math"

	"heatingcontrol/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actuator commands a single valve. Commands are fire-and-forget and
// idempotent; the engine never reads valve state back.
type Actuator interface {
	Command(entityID string, action Action) error
}

// ActuatorFunc adapts a plain function to Actuator
type ActuatorFunc func(entityID string, action Action) error

// Command calls f(entityID, action)
func (f ActuatorFunc) Command(entityID string, action Action) error {
	return f(entityID, action)
}

// SkipReason explains why a room received no commands
type SkipReason string

const (
	SkipNone                  SkipReason = ""
	SkipManualOverride        SkipReason = "manual_override"
	SkipOverrideIndeterminate SkipReason = "override_indeterminate"
	SkipSensorUnreadable      SkipReason = "sensor_unreadable"
	SkipTargetUnreadable      SkipReason = "target_unreadable"
)

// Command records one actuator call made during a pass
type Command struct {
	EntityID string
	Action   Action
	Err      error
}

// RoomOutcome is what happened to one room during a pass. Target and
// Current are NaN when they were not read.
type RoomOutcome struct {
	Room     string
	Target   float64
	Current  float64
	Action   Action
	Skipped  SkipReason
	Err      error
	Commands []Command
}

// PassResult describes one evaluation pass
type PassResult struct {
	ID      string
	Trigger Trigger
	Global  GlobalState
	// Err is set when the pass was aborted before any room was evaluated.
	Err   error
	Rooms []RoomOutcome
}

// CommandErrors returns the number of failed actuator calls
func (p PassResult) CommandErrors() int {
	n := 0
	for _, room := range p.Rooms {
		for _, cmd := range room.Commands {
			if cmd.Err != nil {
				n++
			}
		}
	}
	return n
}

// Option configures an Engine
type Option func(*Engine)

// WithHysteresis overrides DefaultHysteresis
func WithHysteresis(h float64) Option {
	return func(e *Engine) {
		e.hysteresis = h
	}
}

// Engine runs evaluation passes. It keeps no state between passes; every
// decision comes from the values read during the pass.
type Engine struct {
	registry   *Registry
	globals    GlobalEntities
	actuator   Actuator
	hysteresis float64
	logger     *zap.Logger
}

// NewEngine creates an Engine for the rooms in registry
func NewEngine(registry *Registry, globals GlobalEntities, actuator Actuator, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		globals:    globals,
		actuator:   actuator,
		hysteresis: DefaultHysteresis,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the rooms the engine controls
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Hysteresis returns the dead band width in use
func (e *Engine) Hysteresis() float64 {
	return e.hysteresis
}

// Evaluate runs one pass over the rooms selected by trigger, reading every
// input from r. Failures are confined to the room they occur in.
func (e *Engine) Evaluate(r state.Reader, trigger Trigger) PassResult {
	result := PassResult{
		ID:      uuid.NewString(),
		Trigger: trigger,
	}
	logger := e.logger.With(
		zap.String("pass_id", result.ID),
		zap.Stringer("trigger", trigger),
	)

	gs, err := ReadGlobalState(r, e.globals)
	if err != nil {
		logger.Error("Cannot determine heating mode, skipping pass", zap.Error(err))
		result.Err = err
		return result
	}
	result.Global = gs

	rooms := SelectRooms(e.registry.Rooms(), trigger)
	if len(rooms) == 0 {
		logger.Debug("No rooms affected by trigger")
		return result
	}

	logger.Debug("Evaluating rooms",
		zap.String("mode", gs.Mode.String()),
		zap.Bool("scheduled", gs.Mode.Automatic()),
		zap.Bool("day", gs.Day),
		zap.Int("rooms", len(rooms)))

	result.Rooms = make([]RoomOutcome, 0, len(rooms))
	for _, room := range rooms {
		result.Rooms = append(result.Rooms, e.evaluateRoom(logger, r, gs, room))
	}
	return result
}

func (e *Engine) evaluateRoom(logger *zap.Logger, r state.Reader, gs GlobalState, room Room) RoomOutcome {
	logger = logger.With(zap.String("room", room.Name))
	out := RoomOutcome{
		Room:    room.Name,
		Target:  math.NaN(),
		Current: math.NaN(),
	}

	overridden, err := IsOverridden(room, r)
	if err != nil {
		logger.Error("Manual mode unreadable, leaving room alone",
			zap.String("manual_mode", room.ManualOverrideID), zap.Error(err))
		out.Skipped = SkipOverrideIndeterminate
		out.Err = err
		return out
	}
	if overridden {
		logger.Info("Manual mode active, skipping room", zap.String("manual_mode", room.ManualOverrideID))
		out.Skipped = SkipManualOverride
		return out
	}

	if gs.Mode == ModeOff {
		logger.Info("Heating mode is OFF")
		out.Action = TurnOff
		out.Commands = e.apply(logger, room, TurnOff)
		return out
	}

	current, err := state.Number(r, room.SensorID)
	if err != nil {
		logger.Warn("Cannot read current temperature, skipping room",
			zap.String("sensor", room.SensorID), zap.Error(err))
		out.Skipped = SkipSensorUnreadable
		out.Err = err
		return out
	}
	out.Current = current

	target, err := ResolveTarget(room, gs, r)
	if err != nil {
		logger.Warn("Cannot resolve target temperature, skipping room", zap.Error(err))
		out.Skipped = SkipTargetUnreadable
		out.Err = err
		return out
	}
	out.Target = target

	out.Action = Decide(target, current, e.hysteresis)
	logger.Info("Updating heating valves",
		zap.Float64("target", target),
		zap.Float64("current", current),
		zap.Stringer("action", out.Action))

	if out.Action != NoAction {
		out.Commands = e.apply(logger, room, out.Action)
	}
	return out
}

// apply commands every valve of room in order. A failed command does not
// stop the remaining valves and nothing already sent is undone.
func (e *Engine) apply(logger *zap.Logger, room Room, action Action) []Command {
	commands := make([]Command, 0, len(room.ValveIDs))
	for _, valve := range room.ValveIDs {
		err := e.actuator.Command(valve, action)
		if err != nil {
			logger.Error("Valve command failed",
				zap.String("valve", valve),
				zap.Stringer("action", action),
				zap.Error(err))
		} else {
			logger.Debug("Valve commanded", zap.String("valve", valve), zap.Stringer("action", action))
		}
		commands = append(commands, Command{EntityID: valve, Action: action, Err: err})
	}
	return commands
}
