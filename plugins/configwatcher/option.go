package configwatcher

import "github.com/bft-labs/auditship/pkg/auditship"

// WithConfigWatcher returns an auditship Option that enables config file
// watching. When enabled, writes to the file update cache limits and
// collector endpoints of the running instance.
//
// Usage:
//
//	a, err := auditship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/auditship/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) auditship.Option {
	plugin := New(cfg)
	return auditship.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns an auditship Option that watches
// ~/.auditship/config.toml with a 100ms debounce.
//
// Usage:
//
//	a, err := auditship.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() auditship.Option {
	return WithConfigWatcher(DefaultConfig())
}
