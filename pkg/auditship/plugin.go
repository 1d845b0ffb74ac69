package auditship

import (
	"context"

	"github.com/bft-labs/auditship/pkg/log"
)

// Plugin extends an Auditship instance with optional behavior.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called during Start, in registration order. Returning an
	// error aborts Start and moves the instance to StateCrashed.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop, in reverse registration order.
	Shutdown(ctx context.Context) error
}

// Controller is the runtime control surface handed to plugins.
type Controller interface {
	// SetCollectors replaces the candidate collector set.
	SetCollectors(ctx context.Context, candidates []string, maxChannels int) error

	// UpdateSettings swaps in new cache limits and file locations.
	UpdateSettings(s Settings) error

	// Settings returns the limits currently in force.
	Settings() Settings
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	Collectors         []string
	MaxConnectChannels int
	Settings           Settings
	Logger             log.Logger
	Controller         Controller
}
