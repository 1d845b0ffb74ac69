// Package codec implements the audit envelope exchanged with collectors.
//
// Each frame on the wire is a 4-byte big-endian length followed by a command
// body in protobuf wire format:
//
//	Command      { 1: type (varint), 2: AuditRequest (bytes), 3: AuditReply (bytes) }
//	AuditRequest { 1: request_id, 2: Header (bytes), 3: repeated AuditItem (bytes) }
//	Header       { 1: ip, 2: docker_id, 3: thread_id, 4: sdk_ts, 5: packet_id }
//	AuditItem    { 1: log_ts, 2: group_id, 3: stream_id, 4: audit_id, 5: audit_tag,
//	               6: audit_version, 7: count, 8: size, 9: delay }
//	AuditReply   { 1: request_id, 2: rsp_code, 3: message }
//
// Unknown fields are skipped so newer collectors stay readable.
package codec

// CommandType identifies the payload carried by a command.
type CommandType uint64

const (
	CommandRequest CommandType = 1
	CommandReply   CommandType = 2
	CommandPing    CommandType = 3
	CommandPong    CommandType = 4
)

// Header describes the reporting process.
type Header struct {
	IP           string `json:"ip"`
	DockerID     string `json:"docker_id"`
	ThreadID     string `json:"thread_id"`
	SDKTimestamp int64  `json:"sdk_ts"`
	PacketID     uint64 `json:"packet_id"`
}

// AuditItem is one aggregated audit measurement.
type AuditItem struct {
	LogTimestamp int64  `json:"log_ts"`
	GroupID      string `json:"group_id"`
	StreamID     string `json:"stream_id"`
	AuditID      string `json:"audit_id"`
	AuditTag     string `json:"audit_tag,omitempty"`
	AuditVersion int64  `json:"audit_version,omitempty"`
	Count        int64  `json:"count"`
	Size         int64  `json:"size"`
	Delay        int64  `json:"delay"`
}

// AuditRequest is a batch of audit items sent under one request id.
type AuditRequest struct {
	RequestID uint64
	Header    Header
	Items     []AuditItem
}

// AuditReply is the collector's answer to an AuditRequest.
type AuditReply struct {
	RequestID uint64
	Status    int32
	Message   string
}
