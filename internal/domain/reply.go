package domain

// StatusCode is the collector's verdict on an audit request.
type StatusCode int32

const (
	StatusSuccess StatusCode = iota
	StatusFailed
)

// IsSuccess reports whether the collector accepted the request.
func (c StatusCode) IsSuccess() bool { return c == StatusSuccess }

// String returns a human-readable representation of the status code.
func (c StatusCode) String() string {
	switch c {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Reply is a parsed acknowledgment from the collector.
type Reply struct {
	RequestID uint64
	Status    StatusCode
	Message   string
}
