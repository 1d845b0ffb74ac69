package sender

import (
	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/metrics"
	"github.com/bft-labs/auditship/pkg/log"
)

// OnReply handles one collector reply. Success removes the record. A failure
// is retried immediately until the record has been retried
// domain.MaxSendTimes times; after that it stays pending for the age scan.
func (m *Manager) OnReply(body []byte) {
	reply, err := codec.ParseReply(body)
	if err != nil {
		m.metrics.Reply(metrics.ReplyMalformed)
		m.group.SetError(true)
		m.logger.Error("failed to parse collector reply", log.Err(err))
		return
	}

	if reply.Status.IsSuccess() {
		if !m.cache.remove(reply.RequestID) {
			m.unmatched(reply)
			return
		}
		m.metrics.Reply(metrics.ReplySuccess)
		m.metrics.SetPending(m.cache.len())
		return
	}

	now := m.now()
	rec, ok := m.cache.update(reply.RequestID, func(r *domain.AuditRecord) {
		r.ResendCount++
		if r.ResendCount < domain.MaxSendTimes {
			r.SendTime = now
		}
	})
	if !ok {
		m.unmatched(reply)
		return
	}
	m.metrics.Reply(metrics.ReplyFailure)
	m.logger.Warn("collector rejected audit request",
		log.Uint64("request_id", reply.RequestID),
		log.String("status", reply.Status.String()),
		log.String("message", reply.Message),
		log.Int("resend_count", rec.ResendCount),
	)
	if rec.ResendCount < domain.MaxSendTimes {
		m.dispatch(rec.Payload)
		m.metrics.Redispatched(metrics.ReasonReply)
	}
}

func (m *Manager) unmatched(reply domain.Reply) {
	m.metrics.Reply(metrics.ReplyUnmatched)
	m.logger.Warn("reply for unknown request",
		log.Uint64("request_id", reply.RequestID),
		log.String("status", reply.Status.String()),
	)
}

// OnTransportError raises the error flag so the next endpoint refresh
// re-selects collectors.
func (m *Manager) OnTransportError(err error) {
	m.group.SetError(true)
	m.logger.Error("collector transport error", log.Err(err))
}
