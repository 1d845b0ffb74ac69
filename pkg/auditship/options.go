package auditship

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/ports"
	"github.com/bft-labs/auditship/pkg/log"
)

// Re-export types from internal packages for embedding applications.
type (
	// Item is one aggregated audit measurement.
	Item = codec.AuditItem

	// Settings are the hot-swappable cache limits and file locations.
	Settings = domain.Settings

	// Transport opens collector connections.
	Transport = ports.Transport

	// DisasterStore persists overflow records.
	DisasterStore = ports.DisasterStore
)

// Option configures optional behavior of Auditship.
type Option func(*options)

// options holds the optional configuration for an Auditship instance.
type options struct {
	logger       log.Logger
	transport    Transport
	store        DisasterStore
	registerer   prometheus.Registerer
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport replaces the TCP transport used to reach collectors.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithDisasterStore replaces the JSON disaster file.
func WithDisasterStore(s DisasterStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithMetricsRegisterer registers the sender's Prometheus collectors with reg.
// Without it no metrics are registered.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithEventHandler sets a handler for auditship events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Auditship starts.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
