package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bft-labs/auditship/internal/domain"
)

// Command is a decoded command body.
type Command struct {
	Type    CommandType
	Request *AuditRequest
	Reply   *AuditReply
}

// DecodeCommand parses an unframed command body.
func DecodeCommand(body []byte) (Command, error) {
	var cmd Command
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			cmd.Type = CommandType(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			req, err := decodeRequest(raw)
			if err != nil {
				return 0, err
			}
			cmd.Request = &req
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			reply, err := decodeReply(raw)
			if err != nil {
				return 0, err
			}
			cmd.Reply = &reply
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return cmd, err
}

// DecodeRequest parses a command body that must carry an audit request.
func DecodeRequest(body []byte) (AuditRequest, error) {
	cmd, err := DecodeCommand(body)
	if err != nil {
		return AuditRequest{}, err
	}
	if cmd.Type != CommandRequest || cmd.Request == nil {
		return AuditRequest{}, fmt.Errorf("%w: command type %d is not a request", domain.ErrMalformedFrame, cmd.Type)
	}
	return *cmd.Request, nil
}

// ParseReply parses a command body that must carry an audit reply.
func ParseReply(body []byte) (domain.Reply, error) {
	cmd, err := DecodeCommand(body)
	if err != nil {
		return domain.Reply{}, err
	}
	if cmd.Type != CommandReply || cmd.Reply == nil {
		return domain.Reply{}, fmt.Errorf("%w: command type %d is not a reply", domain.ErrMalformedFrame, cmd.Type)
	}
	return domain.Reply{
		RequestID: cmd.Reply.RequestID,
		Status:    domain.StatusCode(cmd.Reply.Status),
		Message:   cmd.Reply.Message,
	}, nil
}

func decodeRequest(body []byte) (AuditRequest, error) {
	var req AuditRequest
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			req.RequestID = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, decodeHeader(raw, &req.Header)
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var it AuditItem
			if err := decodeItem(raw, &it); err != nil {
				return 0, err
			}
			req.Items = append(req.Items, it)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return req, err
}

func decodeHeader(body []byte, h *Header) error {
	return walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &h.IP)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &h.DockerID)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &h.ThreadID)
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.SDKTimestamp = int64(v)
			return n, nil
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.PacketID = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func decodeItem(body []byte, it *AuditItem) error {
	ints := map[protowire.Number]*int64{
		1: &it.LogTimestamp,
		6: &it.AuditVersion,
		7: &it.Count,
		8: &it.Size,
		9: &it.Delay,
	}
	strs := map[protowire.Number]*string{
		2: &it.GroupID,
		3: &it.StreamID,
		4: &it.AuditID,
		5: &it.AuditTag,
	}
	return walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if dst, ok := ints[num]; ok && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			*dst = int64(v)
			return n, nil
		}
		if dst, ok := strs[num]; ok && typ == protowire.BytesType {
			return consumeString(b, dst)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func decodeReply(body []byte) (AuditReply, error) {
	var reply AuditReply
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			reply.RequestID = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			reply.Status = int32(int64(v))
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &reply.Message)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return reply, err
}

func consumeString(b []byte, dst *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n, nil
}

// walk iterates the fields of a message. fn consumes the field value starting
// at b and returns the number of bytes read, negative on a wire error.
func walk(body []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return fmt.Errorf("%w: %v", domain.ErrMalformedFrame, protowire.ParseError(n))
		}
		body = body[n:]
		m, err := fn(num, typ, body)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: %v", domain.ErrMalformedFrame, protowire.ParseError(m))
		}
		body = body[m:]
	}
	return nil
}
