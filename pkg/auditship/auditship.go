package auditship

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/auditship/internal/adapters/fs"
	"github.com/bft-labs/auditship/internal/adapters/tcp"
	"github.com/bft-labs/auditship/internal/app"
	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/metrics"
	"github.com/bft-labs/auditship/internal/sender"
	"github.com/bft-labs/auditship/pkg/log"
)

// FlushTimeout bounds the disaster-file write performed by Stop.
const FlushTimeout = 10 * time.Second

// Auditship is an audit-event sender that can be embedded in other
// applications. Use New() to create an instance, then Start() to connect.
type Auditship struct {
	config     Config
	lifecycle  *app.Lifecycle
	manager    *sender.Manager
	maintainer *app.Maintainer
	tcp        *tcp.Transport
	logger     log.Logger
	plugins    []Plugin

	header  codec.Header
	packets atomic.Uint64

	// mu serializes Start and Stop.
	mu sync.Mutex
}

// New creates a new Auditship instance with the given configuration.
// The instance is created in StateStopped; call Start() to connect.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Auditship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	settings := domain.NewSettingsHolder(cfg.settings())
	store := o.store
	if store == nil {
		store = fs.NewDisasterFile(settings, fs.WithLogger(logger))
	}

	a := &Auditship{
		config:    cfg,
		lifecycle: app.NewLifecycle(logger, emitter),
		logger:    logger,
		plugins:   o.plugins,
		header: codec.Header{
			IP:       cfg.IP,
			DockerID: cfg.DockerID,
			ThreadID: strconv.Itoa(os.Getpid()),
		},
	}

	transport := o.transport
	if transport == nil {
		a.tcp = tcp.NewTransport(
			tcp.WithDialTimeout(cfg.DialTimeout),
			tcp.WithWriteTimeout(cfg.WriteTimeout),
			tcp.WithLogger(logger),
		)
		transport = a.tcp
	}

	a.manager = sender.NewManager(sender.Deps{
		Transport: transport,
		Store:     store,
		Settings:  settings,
		Logger:    logger,
		Metrics:   metrics.NewSender(o.registerer),
	},
		sender.WithMaxConnectChannels(cfg.MaxConnectChannels),
		sender.WithDialTimeout(cfg.DialTimeout),
	)
	a.maintainer = app.NewMaintainer(app.MaintainerConfig{
		ClearInterval:  cfg.ClearInterval,
		RecoverOnStart: true,
	}, a.manager, logger, emitter)

	return a, nil
}

// Start connects to the collectors and begins buffer maintenance in the
// background. The disaster file left by a previous run is replayed first.
// Returns an error if already running, if the instance was stopped, or if a
// plugin fails to initialize. Collectors that cannot be reached yet are
// retried and do not fail Start.
func (a *Auditship) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	runCtx, err := a.lifecycle.Begin(ctx, "Start() called")
	if err != nil {
		return err
	}

	// Ids recovered from the disaster file stay reserved so new reports
	// cannot reuse one before recovery has replayed it.
	if err := a.manager.ReserveRecoveredIDs(runCtx); err != nil {
		a.logger.Warn("could not read disaster file ids", log.Err(err))
	}
	if err := a.manager.SetEndpoints(runCtx, a.config.Collectors, a.config.MaxConnectChannels); err != nil {
		a.logger.Warn("initial collector connection incomplete", log.Err(err))
	}

	pluginCfg := PluginConfig{
		Collectors:         append([]string(nil), a.config.Collectors...),
		MaxConnectChannels: a.manager.MaxConnectChannels(),
		Settings:           a.manager.Settings(),
		Logger:             a.logger,
		Controller:         a,
	}
	for _, p := range a.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			a.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			a.lifecycle.Cancel()
			_ = a.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		a.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	a.lifecycle.Go(func() {
		if err := a.lifecycle.TransitionTo(app.StateRunning, "maintenance starting"); err != nil {
			a.logger.Error("failed to transition to running", log.Err(err))
			return
		}

		err := a.maintainer.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("maintenance error", log.Err(err))
			_ = a.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	return nil
}

// Stop shuts the instance down. Every unacknowledged report is written to
// the disaster file so the next Start replays it, then collector connections
// are closed and plugins shut down.
// Returns nil on graceful shutdown, ErrShutdownTimeout if the maintenance
// loop did not finish in time.
func (a *Auditship) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.lifecycle.Retire("Stop() called", app.ShutdownTimeout)
	if errors.Is(err, domain.ErrNotRunning) {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
	if flushErr := a.manager.Flush(flushCtx); flushErr != nil {
		a.logger.Error("failed to persist pending reports", log.Err(flushErr))
	}
	cancel()

	if closeErr := a.manager.Close(); closeErr != nil {
		a.logger.Warn("closing collector connections", log.Err(closeErr))
	}
	if a.tcp != nil {
		_ = a.tcp.Close()
	}

	shutdownCtx := context.Background()
	for i := len(a.plugins) - 1; i >= 0; i-- {
		p := a.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		} else {
			a.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}

	a.lifecycle.Settle(err)
	return err
}

// Report sends items as one audit request and returns its request id. The
// request stays pending until a collector acknowledges it. Report does not
// wait for the network; it fails only when the instance is not started, ctx
// is done, or items is empty.
func (a *Auditship) Report(ctx context.Context, items ...Item) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, domain.ErrEmptyPayload
	}
	if !a.lifecycle.Accepting() {
		return 0, domain.ErrNotRunning
	}

	id := a.manager.NextRequestID()
	h := a.header
	h.SDKTimestamp = time.Now().UnixMilli()
	h.PacketID = a.packets.Add(1)

	payload := codec.EncodeRequest(codec.AuditRequest{RequestID: id, Header: h, Items: items})
	a.manager.Send(id, payload)
	return id, nil
}

// SetCollectors replaces the candidate collector endpoints. A random subset
// of at most maxChannels is connected; AllConnectChannels uses every one.
func (a *Auditship) SetCollectors(ctx context.Context, candidates []string, maxChannels int) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: at least one collector is required", domain.ErrInvalidConfig)
	}
	if maxChannels == 0 || maxChannels < domain.AllConnectChannels {
		return fmt.Errorf("%w: max connect channels %d", domain.ErrInvalidConfig, maxChannels)
	}
	return a.manager.SetEndpoints(ctx, candidates, maxChannels)
}

// UpdateSettings swaps in new cache limits and file locations.
func (a *Auditship) UpdateSettings(s Settings) error {
	return a.manager.SetSettings(s)
}

// Settings returns the limits currently in force.
func (a *Auditship) Settings() Settings {
	return a.manager.Settings()
}

// Pending returns the number of unacknowledged reports held in memory.
func (a *Auditship) Pending() int {
	return a.manager.Pending()
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (a *Auditship) Status() State {
	return convertState(a.lifecycle.State())
}

var _ Controller = (*Auditship)(nil)
