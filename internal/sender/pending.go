package sender

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/auditship/internal/domain"
)

const shardCount = 64

type shard struct {
	mu      sync.RWMutex
	records map[uint64]*domain.AuditRecord
}

// pendingCache maps request ids to unacknowledged records. It is split into
// shards so concurrent senders and reply handlers rarely contend, and carries
// the FIFO age queue walked by the resend scan.
type pendingCache struct {
	shards [shardCount]shard
	size   atomic.Int64
	queue  ageQueue
}

func newPendingCache() *pendingCache {
	c := &pendingCache{}
	for i := range c.shards {
		c.shards[i].records = make(map[uint64]*domain.AuditRecord)
	}
	return c
}

func (c *pendingCache) shard(id uint64) *shard {
	return &c.shards[id%shardCount]
}

// insertIfAbsent stores rec unless its id is already pending.
func (c *pendingCache) insertIfAbsent(rec domain.AuditRecord) bool {
	s := c.shard(rec.RequestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.RequestID]; ok {
		return false
	}
	s.records[rec.RequestID] = &rec
	c.size.Add(1)
	return true
}

func (c *pendingCache) get(id uint64) (domain.AuditRecord, bool) {
	s := c.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return domain.AuditRecord{}, false
	}
	return *r, true
}

// update applies fn to the pending record under the shard lock and returns
// the updated copy.
func (c *pendingCache) update(id uint64, fn func(*domain.AuditRecord)) (domain.AuditRecord, bool) {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return domain.AuditRecord{}, false
	}
	fn(r)
	return *r, true
}

// touch marks a transmission attempt at now.
func (c *pendingCache) touch(id uint64, now time.Time) (domain.AuditRecord, bool) {
	return c.update(id, func(r *domain.AuditRecord) { r.SendTime = now })
}

func (c *pendingCache) remove(id uint64) bool {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	c.size.Add(-1)
	return true
}

func (c *pendingCache) len() int {
	return int(c.size.Load())
}

// snapshot copies every pending record. Records inserted or removed while
// the snapshot is taken may or may not be included.
func (c *pendingCache) snapshot() []domain.AuditRecord {
	out := make([]domain.AuditRecord, 0, c.len())
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for _, r := range s.records {
			out = append(out, *r)
		}
		s.mu.RUnlock()
	}
	return out
}

// ageQueue is a FIFO of request ids holding each id at most once. Ids whose
// record is gone are dropped when the scan reaches them or on prune.
type ageQueue struct {
	mu      sync.Mutex
	ids     []uint64
	head    int
	members map[uint64]struct{}
}

// push appends id unless it is already queued.
func (q *ageQueue) push(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.members == nil {
		q.members = make(map[uint64]struct{})
	}
	if _, ok := q.members[id]; ok {
		return false
	}
	q.members[id] = struct{}{}
	q.ids = append(q.ids, id)
	return true
}

func (q *ageQueue) pop() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.ids) {
		return 0, false
	}
	id := q.ids[q.head]
	q.head++
	delete(q.members, id)
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 1024 && q.head*2 > len(q.ids) {
		n := copy(q.ids, q.ids[q.head:])
		q.ids = q.ids[:n]
		q.head = 0
	}
	return id, true
}

// prune drops every queued id for which keep returns false, preserving the
// order of the rest.
func (q *ageQueue) prune(keep func(id uint64) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	live := q.ids[:0]
	dropped := 0
	for _, id := range q.ids[q.head:] {
		if keep(id) {
			live = append(live, id)
			continue
		}
		delete(q.members, id)
		dropped++
	}
	q.ids = live
	q.head = 0
	return dropped
}

func (q *ageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids) - q.head
}
