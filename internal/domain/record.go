package domain

import "time"

// Delivery constants shared by the sender and its collaborators.
const (
	// MaxRequestID is the largest request id handed out before the sequence wraps to 0.
	MaxRequestID uint64 = 1_000_000_000

	// ResendThreshold is how long a pending record may go without a transmission
	// attempt before the age scan redispatches it.
	ResendThreshold = 10 * time.Second

	// MaxSendTimes caps reply-driven retries of a single record.
	MaxSendTimes = 3

	// SendInterval is the pause between bulk redispatches during buffer
	// maintenance and disaster recovery.
	SendInterval = 20 * time.Millisecond

	// DefaultConnectChannels is the default number of collector endpoints in use.
	DefaultConnectChannels = 2

	// AllConnectChannels selects every known collector endpoint.
	AllConnectChannels = -1
)

// AuditRecord is one audit request that has been sent but not yet acknowledged.
// Its JSON form is the persisted layout of the disaster file.
type AuditRecord struct {
	// RequestID is unique among currently pending records.
	RequestID uint64 `json:"request_id"`

	// Payload is the framed envelope, ready for transmission.
	Payload []byte `json:"payload"`

	// SendTime is the time of the most recent transmission attempt.
	SendTime time.Time `json:"send_time"`

	// ResendCount is the number of reply-driven retransmissions.
	ResendCount int `json:"resend_count"`
}

// Stale reports whether the record's last attempt is older than threshold at now.
func (r AuditRecord) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.SendTime) > threshold
}

// SendResult captures the outcome of one dispatch attempt.
type SendResult struct {
	OK       bool
	Endpoint string
	Err      error
}
