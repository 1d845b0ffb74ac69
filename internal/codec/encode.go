package codec

import (
	"encoding/binary"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeRequest wraps req in a request command and returns the framed bytes.
func EncodeRequest(req AuditRequest) []byte {
	return frame(appendCommand(nil, CommandRequest, appendRequest(nil, req), 2))
}

// EncodeReply wraps reply in a reply command and returns the framed bytes.
func EncodeReply(reply AuditReply) []byte {
	return frame(appendCommand(nil, CommandReply, appendReply(nil, reply), 3))
}

// EncodePing returns a framed keepalive command.
func EncodePing() []byte {
	return frame(appendCommand(nil, CommandPing, nil, 0))
}

func appendCommand(b []byte, typ CommandType, body []byte, field protowire.Number) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(typ))
	if field != 0 {
		b = protowire.AppendTag(b, field, protowire.BytesType)
		b = protowire.AppendBytes(b, body)
	}
	return b
}

func appendRequest(b []byte, req AuditRequest) []byte {
	b = appendVarint(b, 1, req.RequestID)

	var h []byte
	h = appendString(h, 1, req.Header.IP)
	h = appendString(h, 2, req.Header.DockerID)
	h = appendString(h, 3, req.Header.ThreadID)
	h = appendVarint(h, 4, uint64(req.Header.SDKTimestamp))
	h = appendVarint(h, 5, req.Header.PacketID)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, h)

	for _, it := range req.Items {
		var m []byte
		m = appendVarint(m, 1, uint64(it.LogTimestamp))
		m = appendString(m, 2, it.GroupID)
		m = appendString(m, 3, it.StreamID)
		m = appendString(m, 4, it.AuditID)
		m = appendString(m, 5, it.AuditTag)
		m = appendVarint(m, 6, uint64(it.AuditVersion))
		m = appendVarint(m, 7, uint64(it.Count))
		m = appendVarint(m, 8, uint64(it.Size))
		m = appendVarint(m, 9, uint64(it.Delay))
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}

func appendReply(b []byte, reply AuditReply) []byte {
	b = appendVarint(b, 1, reply.RequestID)
	b = appendVarint(b, 2, uint64(int64(reply.Status)))
	b = appendString(b, 3, reply.Message)
	return b
}

// appendVarint omits zero values, as proto3 does.
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func frame(body []byte) []byte {
	out := make([]byte, frameHeaderLen+len(body))
	binary.BigEndian.PutUint32(out[:frameHeaderLen], uint32(len(body)))
	copy(out[frameHeaderLen:], body)
	return out
}
