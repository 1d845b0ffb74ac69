// Package log provides the logging abstraction used by auditship components.
//
// Every component receives a [Logger] through its constructor; nothing in
// auditship logs through a package-level global. A zerolog-backed adapter is
// provided for production use and a no-op logger for tests and embedding.
//
// # Usage
//
//	logger, err := log.NewZerologAdapter(os.Stderr, "info")
//	if err != nil {
//	    return err
//	}
//	logger.Info("collector reply", log.Uint64("request_id", id), log.String("status", "SUCCESS"))
//
// # Custom Loggers
//
// Implement the Logger interface to route auditship logs into an existing
// logging pipeline:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
