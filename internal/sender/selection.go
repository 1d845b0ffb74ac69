package sender

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/bft-labs/auditship/internal/domain"
)

// selector draws endpoint subsets. A nil rng uses the global source.
type selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *selector) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// pick returns a uniformly random subset of candidates of size maxChannels,
// drawn without replacement. domain.AllConnectChannels, or a count at least
// as large as the candidate set, selects every candidate.
func (s *selector) pick(candidates []string, maxChannels int) []string {
	pool := dedupe(candidates)
	n := len(pool)
	if maxChannels == domain.AllConnectChannels || maxChannels < 0 || maxChannels >= n {
		maxChannels = n
	}
	// Partial Fisher-Yates: the first maxChannels positions are the sample.
	for i := 0; i < maxChannels; i++ {
		j := i + s.intN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:maxChannels]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sameSet reports whether a and b hold the same elements, ignoring order.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
