// Package configwatcher provides config file monitoring for auditship.
// When enabled, it watches the TOML config file and applies changed cache
// limits and collector endpoints to the running instance.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/auditship/internal/cliconfig"
	"github.com/bft-labs/auditship/pkg/auditship"
	"github.com/bft-labs/auditship/pkg/log"
)

// Plugin implements config watching functionality.
// It monitors one TOML file and pushes its settings to the instance's
// controller whenever the file is written.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	pinned        map[string]bool

	// Runtime state
	logger      log.Logger
	controller  auditship.Controller
	collectors  []string
	maxChannels int
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	debounce    *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch. Empty disables the plugin.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Pinned lists config keys (flag names such as "collectors") that were set
	// on the command line and must not be overridden by the file.
	Pinned map[string]bool
}

// DefaultConfig returns a Config watching the default config path.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		pinned:        cfg.Pinned,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg auditship.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NoopLogger{}
	}
	p.controller = cfg.Controller
	p.collectors = append([]string(nil), cfg.Collectors...)
	p.maxChannels = cfg.MaxConnectChannels
	p.mu.Unlock()

	if p.path == "" || p.controller == nil {
		p.logger.Warn("config watcher disabled: no config path or controller")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return nil
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.logger.Error("config watcher: failed to watch directory",
			log.String("dir", filepath.Dir(p.path)),
			log.Err(err))
		_ = watcher.Close()
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// watchLoop watches for config file changes.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload(ctx)
	})
}

// reload applies the file on top of the values currently in force. Files
// that fail to parse or validate are logged and ignored.
func (p *Plugin) reload(ctx context.Context) {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Error("config watcher: failed to load config", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	current := p.controller.Settings()
	cfg := cliconfig.Config{
		Collectors:         append([]string(nil), p.collectors...),
		MaxConnectChannels: p.maxChannels,
		MaxCacheRows:       current.MaxCacheRows,
		MaxFileSize:        current.MaxFileSize,
		FilePath:           current.FilePath,
		DisasterFile:       current.DisasterFile,
	}
	p.mu.Unlock()

	if fc.FilePath != "" && fc.DisasterFile == "" && !p.pinned["file-path"] {
		cfg.DisasterFile = ""
	}
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.pinned); err != nil {
		p.logger.Error("config watcher: invalid config", log.Err(err))
		return
	}

	if err := p.controller.UpdateSettings(cfg.Settings()); err != nil {
		p.logger.Error("config watcher: settings rejected", log.Err(err))
		return
	}
	if err := p.controller.SetCollectors(ctx, cfg.Collectors, cfg.MaxConnectChannels); err != nil {
		p.logger.Warn("config watcher: collector update incomplete", log.Err(err))
	}

	p.mu.Lock()
	p.collectors = cfg.Collectors
	p.maxChannels = cfg.MaxConnectChannels
	p.mu.Unlock()

	p.logger.Info("config watcher: configuration reloaded",
		log.Strings("collectors", cfg.Collectors),
		log.Int("max_cache_rows", cfg.MaxCacheRows),
	)
}

// Ensure Plugin implements auditship.Plugin.
var _ auditship.Plugin = (*Plugin)(nil)
