package ports

import "context"

// Conn is an established connection to one collector endpoint.
type Conn interface {
	// Endpoint returns the "host:port" this connection was dialed to.
	Endpoint() string

	// Write transmits one framed payload. Implementations must be safe for
	// concurrent use.
	Write(payload []byte) error

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// ConnHandler receives events from a connection's read loop.
type ConnHandler interface {
	// OnFrame is called with the body of every inbound frame.
	OnFrame(c Conn, body []byte)

	// OnFault is called once when the connection fails.
	OnFault(c Conn, err error)
}

// Transport dials collector endpoints.
type Transport interface {
	// Dial connects to endpoint and starts delivering inbound frames to h.
	Dial(ctx context.Context, endpoint string, h ConnHandler) (Conn, error)
}

// ReplyHandler consumes what the collectors send back.
type ReplyHandler interface {
	// OnReply handles one inbound frame body.
	OnReply(body []byte)

	// OnTransportError handles a connection-level failure.
	OnTransportError(err error)
}
