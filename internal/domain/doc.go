// Package domain contains the core entities and value objects for auditship.
//
// This package is the innermost layer of the application. It has no
// dependencies on infrastructure concerns (network, file system, logging) and
// contains only data types, constants and their invariants.
//
// # Entities
//
//   - [AuditRecord]: one undelivered audit request waiting for acknowledgment
//   - [Reply]: a parsed collector acknowledgment
//   - [SendResult]: the outcome of a single dispatch attempt
//   - [Settings]: read-only, hot-swappable sender limits and file locations
//
// # Design Principles
//
// Domain entities are:
//   - Free of infrastructure dependencies
//   - Focused on the delivery invariants (request ids, resend counters)
//   - Testable without mocks or external systems
package domain
