package heating

import (
	"fmt"
	"strings"
	"sync"

	"heatingcontrol/internal/clock"
	"heatingcontrol/internal/config"
	"heatingcontrol/internal/ha"
	"heatingcontrol/internal/heating"
	"heatingcontrol/internal/metrics"
	"heatingcontrol/internal/shadowstate"
	"heatingcontrol/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pluginName = "heating"

// Manager wires the decision engine to Home Assistant. State change handlers
// only queue triggers; a single worker goroutine runs the passes.
type Manager struct {
	haClient ha.HAClient
	config   *config.HeatingConfig
	registry *heating.Registry
	globals  heating.GlobalEntities
	engine   *heating.Engine
	store    *state.Store
	logger   *zap.Logger
	readOnly bool

	clock         clock.Clock
	metrics       *metrics.Metrics
	subRegistry   *shadowstate.SubscriptionRegistry
	subscriptions *shadowstate.SubscriptionHelper
	inputs        *shadowstate.InputCaptureHelper
	shadowTracker *shadowstate.HeatingTracker

	queue  *triggerQueue
	passMu sync.Mutex

	lifecycleMu  sync.Mutex
	running      bool
	reconnectReg sync.Once
	stopCh       chan struct{}
	done         chan struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records passes and breaker state in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithClock replaces the wall clock used for shadow state timestamps
func WithClock(c clock.Clock) Option {
	return func(mgr *Manager) {
		mgr.clock = c
	}
}

// WithSubscriptionRegistry shares a subscription registry with other plugins
func WithSubscriptionRegistry(r *shadowstate.SubscriptionRegistry) Option {
	return func(mgr *Manager) {
		mgr.subRegistry = r
	}
}

// NewManager creates a new heating manager. It fails with
// heating.ErrConfigInvalid if the room configuration is inconsistent.
func NewManager(haClient ha.HAClient, cfg *config.HeatingConfig, logger *zap.Logger, readOnly bool, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no heating configuration", heating.ErrConfigInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		haClient:      haClient,
		config:        cfg,
		registry:      registry,
		globals:       cfg.Globals(),
		logger:        logger.Named(pluginName),
		readOnly:      readOnly,
		clock:         clock.NewRealClock(),
		shadowTracker: shadowstate.NewHeatingTracker(),
		queue:         newTriggerQueue(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.subRegistry == nil {
		m.subRegistry = shadowstate.NewSubscriptionRegistry()
	}

	m.store = state.NewStore(haClient, m.logger.Named("state"))
	m.subscriptions = shadowstate.NewSubscriptionHelper(haClient, m.subRegistry, pluginName, m.logger)
	m.inputs = shadowstate.NewInputCaptureHelper(m.subRegistry)

	actuator := newServiceActuator(haClient, m.logger.Named("actuator"), readOnly, m.metrics)
	m.engine = heating.NewEngine(registry, m.globals, actuator, m.logger.Named("engine"),
		heating.WithHysteresis(cfg.HysteresisValue()))

	return m, nil
}

// Start checks the configured entities against Home Assistant, subscribes to
// them and runs the initial full pass.
func (m *Manager) Start() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.running {
		return fmt.Errorf("heating manager already started")
	}

	m.logger.Info("Starting Heating Manager",
		zap.Int("rooms", m.registry.Len()),
		zap.Float64("hysteresis", m.engine.Hysteresis()),
		zap.Bool("read_only", m.readOnly))

	snap, err := m.store.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read initial states: %w", err)
	}
	if err := m.config.ValidateEntities(snap.Has); err != nil {
		return err
	}

	if err := m.subscribe(); err != nil {
		m.subscriptions.UnsubscribeAll()
		return err
	}
	m.reconnectReg.Do(func() {
		m.haClient.OnReconnect(m.handleReconnect)
	})

	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.run(m.stopCh, m.done)

	m.logger.Info("Ready for action")
	m.passMu.Lock()
	m.evaluateWith(snap, heating.FullEvaluation)
	m.passMu.Unlock()

	return nil
}

func (m *Manager) subscribe() error {
	g := m.globals
	if err := m.subscriptions.SubscribeToEntity(g.Mode, m.handleModeChange); err != nil {
		return err
	}
	if err := m.subscriptions.SubscribeToEntity(g.DayNight, m.handleDayNightChange); err != nil {
		return err
	}
	if err := m.subscriptions.SubscribeToEntity(g.VacationTemperature, m.handleVacationTemperatureChange); err != nil {
		return err
	}
	if g.SomebodyHome != "" {
		if err := m.subscriptions.SubscribeToEntity(g.SomebodyHome, m.handleSomebodyHomeChange); err != nil {
			return err
		}
	}

	// Overrides may be shared between rooms, and a room may use one entity
	// for both targets.
	seen := make(map[string]bool)
	subscribeOnce := func(entityID string, handler ha.StateChangeHandler) error {
		if entityID == "" || seen[entityID] {
			return nil
		}
		seen[entityID] = true
		return m.subscriptions.SubscribeToEntity(entityID, handler)
	}

	for _, room := range m.registry.Rooms() {
		if err := subscribeOnce(room.SensorID, m.handleSensorChange); err != nil {
			return err
		}
		if err := subscribeOnce(room.DayTargetID, m.handleTargetChange); err != nil {
			return err
		}
		if err := subscribeOnce(room.NightTargetID, m.handleTargetChange); err != nil {
			return err
		}
		if err := subscribeOnce(room.ManualOverrideID, m.handleManualModeChange); err != nil {
			return err
		}
	}

	m.logger.Debug("Subscribed to heating entities", zap.Int("count", m.subscriptions.Count()))
	return nil
}

// Stop stops the worker and removes all subscriptions. A pass in progress
// finishes first.
func (m *Manager) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.running {
		return
	}
	m.logger.Info("Stopping Heating Manager")

	m.subscriptions.UnsubscribeAll()
	close(m.stopCh)
	<-m.done
	m.running = false

	m.logger.Info("Heating Manager stopped")
}

// Reset re-evaluates every room synchronously
func (m *Manager) Reset() error {
	m.logger.Info("Resetting heating - re-evaluating all rooms")
	result := m.Evaluate(heating.FullEvaluation)
	if result.Err != nil {
		return fmt.Errorf("failed to reset heating: %w", result.Err)
	}
	return nil
}

// Evaluate runs one pass synchronously. It never overlaps with a pass run
// by the worker.
func (m *Manager) Evaluate(trigger heating.Trigger) heating.PassResult {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	snap, err := m.store.Snapshot()
	if err != nil {
		return m.failedPass(trigger, err)
	}
	return m.evaluateWith(snap, trigger)
}

// Request queues trigger for the worker. It reports whether the trigger was
// merged into work already pending.
func (m *Manager) Request(trigger heating.Trigger) bool {
	coalesced := m.queue.Push(trigger)
	m.metrics.TriggerQueued(coalesced)
	return coalesced
}

// Rooms returns the configured rooms
func (m *Manager) Rooms() []heating.Room {
	return m.registry.Rooms()
}

// TriggerFor classifies a room entity for a scoped pass
func (m *Manager) TriggerFor(entityID string) (heating.Trigger, bool) {
	return m.registry.TriggerFor(entityID)
}

// GetShadowState returns a copy of the heating shadow state
func (m *Manager) GetShadowState() *shadowstate.HeatingShadowState {
	return m.shadowTracker.GetState()
}

func (m *Manager) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		case <-m.queue.Ready():
			m.runBatch(m.queue.Drain())
		}
	}
}

func (m *Manager) runBatch(b batch) {
	if b.empty() {
		return
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	if b.full {
		m.evaluateFresh(heating.FullEvaluation)
		return
	}

	if b.vacationCheck && m.checkVacation() {
		return
	}

	for _, trigger := range b.triggers {
		m.evaluateFresh(trigger)
	}
}

// checkVacation runs a full pass if the house is in vacation mode and
// reports whether it did.
func (m *Manager) checkVacation() bool {
	snap, err := m.store.Snapshot()
	if err != nil {
		m.failedPass(heating.FullEvaluation, err)
		return false
	}

	gs, err := heating.ReadGlobalState(snap, m.globals)
	switch {
	case err != nil:
		m.logger.Warn("Cannot read heating mode for vacation temperature change", zap.Error(err))
	case gs.Mode == heating.ModeVacation:
		m.evaluateWith(snap, heating.FullEvaluation)
		return true
	default:
		m.logger.Debug("Vacation temperature changed outside vacation mode, nothing to do",
			zap.Stringer("mode", gs.Mode))
	}
	return false
}

func (m *Manager) evaluateFresh(trigger heating.Trigger) heating.PassResult {
	snap, err := m.store.Snapshot()
	if err != nil {
		return m.failedPass(trigger, err)
	}
	return m.evaluateWith(snap, trigger)
}

// evaluateWith runs a pass against snap. Callers hold passMu.
func (m *Manager) evaluateWith(snap *state.Snapshot, trigger heating.Trigger) heating.PassResult {
	start := m.clock.Now()
	result := m.engine.Evaluate(snap, trigger)
	m.metrics.ObservePass(result, m.clock.Since(start))
	m.recordShadow(snap, result)
	return result
}

func (m *Manager) failedPass(trigger heating.Trigger, err error) heating.PassResult {
	result := heating.PassResult{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Err:     err,
	}
	m.logger.Error("Failed to read states, skipping pass",
		zap.String("pass_id", result.ID),
		zap.Stringer("trigger", trigger),
		zap.Error(err))
	m.metrics.ObservePass(result, 0)
	m.shadowTracker.RecordPass(result, m.clock.Now())
	return result
}

func (m *Manager) recordShadow(snap *state.Snapshot, result heating.PassResult) {
	m.shadowTracker.UpdateCurrentInputs(m.inputs.CaptureInputs(pluginName, snap))

	for _, room := range result.Rooms {
		if len(room.Commands) > 0 {
			m.shadowTracker.SnapshotInputsForAction()
			break
		}
	}

	m.shadowTracker.RecordPass(result, m.clock.Now())
}

func (m *Manager) handleModeChange(entityID string, oldState, newState *ha.State) {
	m.logger.Info("Heating changed, updating heating valves",
		zap.String("entity_id", entityID),
		zap.String("old", stateValue(oldState)),
		zap.String("new", stateValue(newState)))
	m.Request(heating.FullEvaluation)
}

func (m *Manager) handleDayNightChange(entityID string, oldState, newState *ha.State) {
	m.logger.Info("Day/night changed, updating heating valves",
		zap.String("entity_id", entityID),
		zap.String("new", stateValue(newState)))
	m.Request(heating.FullEvaluation)
}

func (m *Manager) handleVacationTemperatureChange(entityID string, oldState, newState *ha.State) {
	m.logger.Debug("Vacation temperature changed",
		zap.String("entity_id", entityID),
		zap.String("new", stateValue(newState)))
	coalesced := m.queue.PushVacationCheck()
	m.metrics.TriggerQueued(coalesced)
}

func (m *Manager) handleSomebodyHomeChange(entityID string, oldState, newState *ha.State) {
	value := strings.TrimSpace(stateValue(newState))
	switch {
	case strings.EqualFold(value, "on"):
		m.logger.Info("Somebody came home.")
	case strings.EqualFold(value, "off"):
		m.logger.Info("Nobody home.")
	}
	m.Request(heating.FullEvaluation)
}

func (m *Manager) handleManualModeChange(entityID string, oldState, newState *ha.State) {
	m.logger.Info("Manual mode changed",
		zap.String("entity_id", entityID),
		zap.String("new", stateValue(newState)))
	m.Request(heating.FullEvaluation)
}

func (m *Manager) handleSensorChange(entityID string, oldState, newState *ha.State) {
	m.logger.Debug("Temperature changed",
		zap.String("sensor", entityID),
		zap.String("new", stateValue(newState)))
	m.Request(heating.SensorChanged(entityID))
}

func (m *Manager) handleTargetChange(entityID string, oldState, newState *ha.State) {
	m.logger.Debug("Target temperature changed",
		zap.String("entity_id", entityID),
		zap.String("new", stateValue(newState)))
	m.Request(heating.ScheduleChanged(entityID))
}

func (m *Manager) handleReconnect() {
	m.lifecycleMu.Lock()
	running := m.running
	m.lifecycleMu.Unlock()
	if !running {
		return
	}

	m.logger.Info("Reconnected to Home Assistant, re-evaluating all rooms")
	m.Request(heating.FullEvaluation)
}

func stateValue(s *ha.State) string {
	if s == nil {
		return ""
	}
	return s.State
}
