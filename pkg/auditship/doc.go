// Package auditship provides an embeddable audit-event sender.
//
// Auditship delivers audit measurements to a pool of collector endpoints with
// at-least-once semantics. Every report is held in memory until a collector
// acknowledges it; unacknowledged reports are retransmitted on a timer, spill
// to a disaster file when memory is full, and are replayed from that file on
// the next start.
//
// # Basic Usage
//
//	cfg := auditship.Config{
//	    Collectors: []string{"10.0.0.1:9000", "10.0.0.2:9000"},
//	    FilePath:   "/var/lib/auditship",
//	}
//
//	a, err := auditship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := a.Report(ctx, auditship.Item{GroupID: "orders", StreamID: "s1", AuditID: "a1", Count: 10})
//
//	// ... run until shutdown signal ...
//
//	if err := a.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// Create a [Config] with at minimum Collectors and FilePath. All other fields
// have defaults set via [Config.SetDefaults]. Limits and collector endpoints
// can be changed at runtime with [Auditship.UpdateSettings] and
// [Auditship.SetCollectors].
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for the methods you
// do not need) and pass it via [WithEventHandler]. Events are called
// synchronously and should return quickly.
//
// # Lifecycle States
//
// An instance is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Stop persists every
// unacknowledged report to the disaster file; a stopped instance cannot be
// started again.
//
// # Plugins
//
// Plugins are initialized in registration order on Start and shut down in
// reverse order on Stop:
//
//	import "github.com/bft-labs/auditship/plugins/configwatcher"
//
//	a, err := auditship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: "/etc/auditship/config.toml"}),
//	)
package auditship
