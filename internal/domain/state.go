package domain

import "time"

// DefaultWaitingDays is the grace period before a pending document is declared
// permanently unmatched.
const DefaultWaitingDays = 5

// State is the persistent reconciliation state carried across cycles: confirmed
// match pairs, per-side resolved fingerprints, per-side pending pools and the
// timestamp of the last completed cycle. Exactly one cycle mutates it at a time;
// it is loaded at cycle start and persisted atomically at cycle end.
type State struct {
	Matched   map[string]MatchPair
	ResolvedA map[Fingerprint]struct{}
	ResolvedB map[Fingerprint]struct{}
	PendingA  map[Fingerprint]PendingEntry
	PendingB  map[Fingerprint]PendingEntry

	WaitingDays int
	LastRun     *time.Time // nil until the first completed cycle
}

// NewState returns an empty state with the default waiting period.
func NewState() *State {
	return &State{
		Matched:     make(map[string]MatchPair),
		ResolvedA:   make(map[Fingerprint]struct{}),
		ResolvedB:   make(map[Fingerprint]struct{}),
		PendingA:    make(map[Fingerprint]PendingEntry),
		PendingB:    make(map[Fingerprint]PendingEntry),
		WaitingDays: DefaultWaitingDays,
	}
}

func (s *State) resolved(side Side) map[Fingerprint]struct{} {
	if side == SideA {
		return s.ResolvedA
	}
	return s.ResolvedB
}

// Pending returns the pending pool of one side. Callers must not mutate it
// directly; use AddPending and ExpirePending.
func (s *State) Pending(side Side) map[Fingerprint]PendingEntry {
	if side == SideA {
		return s.PendingA
	}
	return s.PendingB
}

// IsResolved reports whether a fingerprint must never be scanned or matched again.
func (s *State) IsResolved(side Side, fp Fingerprint) bool {
	_, ok := s.resolved(side)[fp]
	return ok
}

// MarkResolved moves a fingerprint into the terminal resolved set.
func (s *State) MarkResolved(side Side, fp Fingerprint) {
	s.resolved(side)[fp] = struct{}{}
}

// IsMatched reports whether a pair key has already been recorded.
func (s *State) IsMatched(pairKey string) bool {
	_, ok := s.Matched[pairKey]
	return ok
}

// RecordMatch records a confirmed pair, resolves both fingerprints and drops
// them from their pending pools. A pair key is recorded at most once; a repeat
// call for the same key is a no-op.
func (s *State) RecordMatch(fpA, fpB Fingerprint, pair MatchPair) {
	key := PairKey(fpA, fpB)
	if _, ok := s.Matched[key]; ok {
		return
	}
	s.Matched[key] = pair
	s.MarkResolved(SideA, fpA)
	s.MarkResolved(SideB, fpB)
	delete(s.PendingA, fpA)
	delete(s.PendingB, fpB)
}

// AddPending puts a document into the waiting pool unless an entry already
// exists; the first-seen timestamp is never overwritten. It reports whether a
// new entry was created.
func (s *State) AddPending(side Side, fp Fingerprint, locator string, at time.Time) bool {
	pool := s.Pending(side)
	if _, ok := pool[fp]; ok {
		return false
	}
	pool[fp] = PendingEntry{Locator: locator, FirstSeen: at}
	return true
}

// ExpirePending terminally resolves a pending fingerprint as permanently
// unmatched. An expired document is never reconsidered, even if its true
// counterpart arrives later.
func (s *State) ExpirePending(side Side, fp Fingerprint) {
	s.MarkResolved(side, fp)
	delete(s.Pending(side), fp)
}

// PendingEmpty reports whether both waiting pools are empty.
func (s *State) PendingEmpty() bool {
	return len(s.PendingA) == 0 && len(s.PendingB) == 0
}
