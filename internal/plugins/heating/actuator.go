package heating

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"heatingcontrol/internal/ha"
	"heatingcontrol/internal/heating"
	"heatingcontrol/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// serviceActuator turns valves on and off through Home Assistant services.
// Each valve gets its own circuit breaker so a dead valve fails fast without
// holding up the others.
type serviceActuator struct {
	haClient ha.HAClient
	logger   *zap.Logger
	readOnly bool
	metrics  *metrics.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newServiceActuator(haClient ha.HAClient, logger *zap.Logger, readOnly bool, m *metrics.Metrics) *serviceActuator {
	return &serviceActuator{
		haClient: haClient,
		logger:   logger,
		readOnly: readOnly,
		metrics:  m,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Command implements heating.Actuator
func (a *serviceActuator) Command(entityID string, action heating.Action) error {
	service, err := serviceFor(action)
	if err != nil {
		return err
	}
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" {
		return fmt.Errorf("invalid valve entity id %q", entityID)
	}

	if a.readOnly {
		a.logger.Info("READ-ONLY: Would call valve service",
			zap.String("service", domain+"."+service),
			zap.String("entity_id", entityID))
		return nil
	}

	_, err = a.breaker(entityID).Execute(func() (any, error) {
		return nil, a.haClient.CallService(domain, service, map[string]interface{}{
			"entity_id": entityID,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", service, entityID, err)
	}
	return nil
}

func (a *serviceActuator) breaker(entityID string) *gobreaker.CircuitBreaker {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cb, ok := a.breakers[entityID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    entityID,
		Timeout: breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn("Valve circuit breaker changed state",
				zap.String("entity_id", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			a.metrics.SetCircuitBreakerState(name, float64(to))
		},
	})
	a.breakers[entityID] = cb
	a.metrics.SetCircuitBreakerState(entityID, float64(gobreaker.StateClosed))
	return cb
}

func serviceFor(action heating.Action) (string, error) {
	switch action {
	case heating.TurnOn:
		return "turn_on", nil
	case heating.TurnOff:
		return "turn_off", nil
	default:
		return "", fmt.Errorf("no service for action %s", action)
	}
}
