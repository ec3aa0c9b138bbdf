package shadowstate

import (
	"errors"
	"fmt"

	"heatingcontrol/internal/ha"

	"go.uber.org/zap"
)

// SubscriptionHelper wraps HA subscriptions for a plugin, recording each
// entity in the SubscriptionRegistry and keeping the handles for cleanup.
//
// Handlers run on the client's receive goroutine. They must not call back
// into the client synchronously.
type SubscriptionHelper struct {
	haClient   ha.HAClient
	registry   *SubscriptionRegistry
	pluginName string
	logger     *zap.Logger

	haSubscriptions []ha.Subscription
}

// NewSubscriptionHelper creates a new subscription helper for a plugin
func NewSubscriptionHelper(
	haClient ha.HAClient,
	registry *SubscriptionRegistry,
	pluginName string,
	logger *zap.Logger,
) *SubscriptionHelper {
	return &SubscriptionHelper{
		haClient:        haClient,
		registry:        registry,
		pluginName:      pluginName,
		logger:          logger,
		haSubscriptions: make([]ha.Subscription, 0),
	}
}

// SubscribeToEntity subscribes to a Home Assistant entity with full state access
func (h *SubscriptionHelper) SubscribeToEntity(entityID string, handler ha.StateChangeHandler) error {
	if h.registry != nil {
		h.registry.RegisterHASubscription(h.pluginName, entityID)
	}

	sub, err := h.haClient.SubscribeStateChanges(entityID, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", entityID, err)
	}

	h.haSubscriptions = append(h.haSubscriptions, sub)
	return nil
}

// SubscribeToEntities subscribes handler to every entity in entityIDs,
// stopping at the first failure.
func (h *SubscriptionHelper) SubscribeToEntities(entityIDs []string, handler ha.StateChangeHandler) error {
	for _, entityID := range entityIDs {
		if err := h.SubscribeToEntity(entityID, handler); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of live subscriptions
func (h *SubscriptionHelper) Count() int {
	return len(h.haSubscriptions)
}

// UnsubscribeAll cleans up all subscriptions and the registry entries
func (h *SubscriptionHelper) UnsubscribeAll() error {
	var errs []error
	for _, sub := range h.haSubscriptions {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	h.haSubscriptions = nil

	if h.registry != nil {
		h.registry.UnregisterPlugin(h.pluginName)
	}

	if err := errors.Join(errs...); err != nil {
		h.logger.Warn("Failed to unsubscribe cleanly", zap.Error(err))
		return err
	}
	return nil
}
