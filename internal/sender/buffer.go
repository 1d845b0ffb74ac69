package sender

import (
	"context"
	"errors"

	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/metrics"
	"github.com/bft-labs/auditship/pkg/log"
)

// ClearBuffer redispatches every pending record, paced by the send interval.
// An empty cache afterwards triggers recovery from the disaster file; a cache
// above MaxCacheRows is written to the disaster file and dropped from memory.
// It returns early only when ctx is done.
func (m *Manager) ClearBuffer(ctx context.Context) error {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()

	records := m.cache.snapshot()
	m.logger.Info("clearing pending buffer", log.Int("pending", len(records)))

	limiter := m.newLimiter()
	for _, r := range records {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		rec, ok := m.cache.touch(r.RequestID, m.now())
		if !ok {
			continue
		}
		m.dispatch(rec.Payload)
		m.metrics.Redispatched(metrics.ReasonFlush)
	}

	if m.cache.len() == 0 {
		return m.checkAuditFile(ctx)
	}
	if rows := m.settings.Load().MaxCacheRows; m.cache.len() > rows {
		m.logger.Info("pending buffer over limit",
			log.Int("pending", m.cache.len()),
			log.Int("max_cache_rows", rows),
		)
		return m.writeLocalFile(ctx)
	}
	return nil
}

// WriteLocalFile persists every pending record to the disaster file and drops
// them from memory. On failure memory is left untouched.
func (m *Manager) WriteLocalFile(ctx context.Context) error {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()
	return m.writeLocalFile(ctx)
}

// Flush persists every pending record so a restart replays them.
func (m *Manager) Flush(ctx context.Context) error {
	return m.WriteLocalFile(ctx)
}

func (m *Manager) writeLocalFile(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records := m.cache.snapshot()
	if len(records) == 0 {
		return nil
	}
	if err := m.store.Persist(ctx, records); err != nil {
		if errors.Is(err, domain.ErrDisasterFileTooLarge) {
			m.logger.Warn("discarded oversized disaster file",
				log.String("path", m.settings.Load().DisasterFile),
				log.Err(err),
			)
		} else {
			m.logger.Error("failed to persist pending records", log.Err(err))
		}
		return err
	}
	for _, r := range records {
		m.cache.remove(r.RequestID)
	}
	m.cache.queue.prune(func(id uint64) bool {
		_, ok := m.cache.get(id)
		return ok
	})
	m.metrics.Overflowed()
	m.metrics.SetPending(m.cache.len())
	fields := []log.Field{
		log.Int("records", len(records)),
		log.String("path", m.settings.Load().DisasterFile),
	}
	if size, err := m.store.Size(); err == nil {
		fields = append(fields, log.Int64("file_bytes", size))
	}
	m.logger.Info("persisted pending records", fields...)
	return nil
}

// ReserveRecoveredIDs moves the request id sequence past every id held in
// the disaster file, so new requests never collide with records that
// recovery has yet to replay.
func (m *Manager) ReserveRecoveredIDs(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		m.ids.reserve(maxRequestID(records))
	}
	return nil
}

func maxRequestID(records []domain.AuditRecord) uint64 {
	var id uint64
	for _, r := range records {
		id = max(id, r.RequestID)
	}
	return id
}

// CheckAuditFile replays the disaster file. Records are taken back into memory
// while the cache holds fewer than half of MaxCacheRows, and every record is
// redispatched. The file is deleted once all records have been replayed.
func (m *Manager) CheckAuditFile(ctx context.Context) error {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()
	return m.checkAuditFile(ctx)
}

func (m *Manager) checkAuditFile(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("failed to read disaster file", log.Err(err))
		return err
	}
	if len(records) == 0 {
		return nil
	}
	m.ids.reserve(maxRequestID(records))

	limit := m.settings.Load().MaxCacheRows / 2
	limiter := m.newLimiter()
	restored := 0
	for _, r := range records {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		now := m.now()
		if m.cache.len() < limit {
			r.SendTime = now
			if m.cache.insertIfAbsent(r) {
				m.cache.queue.push(r.RequestID)
				restored++
			}
		}
		m.dispatch(r.Payload)
		m.metrics.Redispatched(metrics.ReasonRecovery)
	}

	if err := m.store.Remove(ctx); err != nil {
		m.logger.Error("failed to remove disaster file", log.Err(err))
	}
	m.metrics.Recovered(len(records))
	m.metrics.SetPending(m.cache.len())
	m.logger.Info("recovered disaster file",
		log.Int("records", len(records)),
		log.Int("restored", restored),
	)
	return nil
}
