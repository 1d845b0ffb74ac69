// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the delivery core and the outside world.
// They describe what the sender needs from external systems without
// specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: Dials collector endpoints
//   - [Conn]: A single established collector connection
//   - [ConnHandler]: Receives inbound frames and faults from a connection
//   - [ReplyHandler]: Consumes collector replies and transport errors
//   - [DisasterStore]: Persists pending records that overflow memory
//
// # Usage
//
// The sender and connection packages depend only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with the file
// system and TCP.
package ports
