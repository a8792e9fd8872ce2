// Package dedup provides a cheap in-memory front for the store claim.
// The hot set answers "seen this address recently?" without a round
// trip; the token store's conditional insert remains the only claim
// authority, so a false negative here costs one duplicate-key no-op
// and nothing else.
package dedup

import "sync"

type hotItem struct {
	address  string
	expireMs int64
}

// HotSet is a TTL set of recently claimed addresses.
type HotSet struct {
	mu   sync.Mutex
	m    map[string]int64 // address -> expire timestamp (ms)
	q    []hotItem        // insertion order
	head int              // pop index
}

// NewHotSet creates a HotSet with a capacity hint.
func NewHotSet(capHint int) *HotSet {
	if capHint < 0 {
		capHint = 0
	}
	return &HotSet{
		m: make(map[string]int64, capHint),
		q: make([]hotItem, 0, capHint),
	}
}

// SeenOrAdd returns true if the address is present and not expired at
// nowMs. Otherwise it records the address with expireMs and returns false.
func (s *HotSet) SeenOrAdd(address string, expireMs, nowMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.m[address]; ok && exp >= nowMs {
		return true
	}
	s.m[address] = expireMs
	s.q = append(s.q, hotItem{address: address, expireMs: expireMs})
	return false
}

// Remove forgets an address so it can be re-added immediately. The
// queue entry is left behind; Evict checks the map expiry before
// deleting, so the stale entry is a harmless no-op.
func (s *HotSet) Remove(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, address)
}

// Evict removes expired addresses to bound memory.
func (s *HotSet) Evict(nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.head < len(s.q) {
		it := s.q[s.head]
		if it.expireMs >= nowMs {
			break
		}
		// Only delete if the map still points to this expiry (the
		// address may have been re-added with a later one).
		if exp, ok := s.m[it.address]; ok && exp == it.expireMs {
			delete(s.m, it.address)
		}
		s.head++
	}

	// Compact the queue once the consumed prefix dominates.
	if s.head > 1024 && s.head*2 > len(s.q) {
		newQ := make([]hotItem, 0, len(s.q)-s.head)
		newQ = append(newQ, s.q[s.head:]...)
		s.q = newQ
		s.head = 0
	}
}

// Len returns the number of live entries in the queue, expired included.
func (s *HotSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.q) - s.head
}
