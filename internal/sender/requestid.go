package sender

import "sync/atomic"

// idSequence hands out request ids 1, 2, ..., max, 0, 1, ... . Concurrent
// callers never observe the same id within one wrap cycle.
type idSequence struct {
	max uint64
	cur atomic.Uint64
}

func (s *idSequence) next() uint64 {
	for {
		cur := s.cur.Load()
		next := cur + 1
		if next > s.max {
			next = 0
		}
		if s.cur.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// reserve moves the sequence forward so the next id is past id. Ids above
// max and ids behind the current position leave the sequence unchanged.
func (s *idSequence) reserve(id uint64) {
	if id > s.max {
		return
	}
	for {
		cur := s.cur.Load()
		if cur >= id || s.cur.CompareAndSwap(cur, id) {
			return
		}
	}
}
