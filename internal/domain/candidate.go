package domain

import (
	"net"
	"strconv"
	"sync"
)

// Candidate is a network endpoint surfaced by discovery, awaiting a probe.
type Candidate struct {
	Address string
	Port    int
}

// HostPort returns the candidate formatted for dialing, e.g. "1.2.3.4:11434".
func (c Candidate) HostPort() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// CandidateSet holds discovery candidates deduplicated by (address, port).
// Insertion is idempotent and safe for concurrent use; port fan-out during
// discovery can run from multiple goroutines against the same set.
type CandidateSet struct {
	mu      sync.Mutex
	members map[Candidate]struct{}
}

// NewCandidateSet returns an empty candidate set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{members: make(map[Candidate]struct{})}
}

// Add inserts a candidate. Adding an existing (address, port) pair is a no-op.
func (s *CandidateSet) Add(c Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[c] = struct{}{}
}

// Len returns the number of distinct candidates.
func (s *CandidateSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// All returns the candidates in unspecified order.
func (s *CandidateSet) All() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Candidate, 0, len(s.members))
	for c := range s.members {
		out = append(out, c)
	}
	return out
}

// Contains reports whether the candidate is already in the set.
func (s *CandidateSet) Contains(c Candidate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[c]
	return ok
}
