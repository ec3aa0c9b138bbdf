package plugin

import (
	"heatingcontrol/internal/clock"
	"heatingcontrol/internal/metrics"
	"heatingcontrol/internal/shadowstate"
	pkgha "heatingcontrol/pkg/ha"

	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization.
// It wraps the core services needed by all plugins in a single struct
// for cleaner constructor signatures.
type Context struct {
	// HAClient provides access to Home Assistant for service calls
	// and entity state subscriptions.
	HAClient pkgha.Client

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// ReadOnly indicates whether the application is in read-only mode.
	// When true, plugins should log what they would do but not make
	// actual changes to Home Assistant entities.
	ReadOnly bool

	// ConfigDir is the path to the configuration directory.
	// Plugins that need configuration files can find them here.
	ConfigDir string

	// Metrics records plugin activity. A nil Metrics is valid and records nothing.
	Metrics *metrics.Metrics

	// SubscriptionRegistry is shared by all plugins so their subscribed
	// entities can be captured as shadow state inputs.
	SubscriptionRegistry *shadowstate.SubscriptionRegistry

	// Clock is the time source for timestamps.
	Clock clock.Clock
}

// NewContext creates a new plugin context with all required dependencies.
// Metrics may be nil.
func NewContext(
	haClient pkgha.Client,
	logger *zap.Logger,
	readOnly bool,
	configDir string,
	m *metrics.Metrics,
) *Context {
	return &Context{
		HAClient:             haClient,
		Logger:               logger,
		ReadOnly:             readOnly,
		ConfigDir:            configDir,
		Metrics:              m,
		SubscriptionRegistry: shadowstate.NewSubscriptionRegistry(),
		Clock:                clock.NewRealClock(),
	}
}
