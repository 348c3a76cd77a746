package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which of the two document streams a record belongs to.
type Side int

const (
	// SideA is the stream of incoming confirmation advices (tagged text documents).
	SideA Side = iota
	// SideB is the stream of incoming payment instructions (XML text documents).
	SideB
)

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Label returns the side's document-kind name, used for archive paths and log lines.
func (s Side) Label() string {
	if s == SideA {
		return "advice"
	}
	return "instruction"
}

// Fingerprint is the content-derived identity of a document: the hex SHA-256
// digest of its raw bytes. Two byte-identical documents share a fingerprint
// regardless of where they live on disk.
type Fingerprint string

// AmountTolerance is the largest amount difference still treated as equal.
var AmountTolerance = decimal.New(1, -2) // 0.01

// Record is the normalized representation of one parsed settlement document.
// It is immutable once constructed and always traceable to exactly one locator.
type Record struct {
	Locator        string
	Side           Side
	Fingerprint    Fingerprint
	Date           string // coarse value date as written in the document, may be empty
	Reference      string // primary business reference
	Amount         decimal.Decimal
	DebitAccount   string
	CreditAccount  string
	TransactionRef string // end-to-end transaction identifier, strongest matching key
}

// PendingEntry is an unmatched document waiting for its counterpart.
// FirstSeen is set once and never overwritten.
type PendingEntry struct {
	Locator   string    `json:"locator"`
	FirstSeen time.Time `json:"first_seen"`
}

// MatchPair is a confirmed pairing of one A-side and one B-side document,
// keyed in the state by PairKey of the two fingerprints.
type MatchPair struct {
	LocatorA       string          `json:"locator_a"`
	LocatorB       string          `json:"locator_b"`
	MatchedAt      time.Time       `json:"matched_at"`
	Reference      string          `json:"reference"`
	TransactionRef string          `json:"transaction_ref"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	DebitAccount   string          `json:"debit_account"`
	CreditAccount  string          `json:"credit_account"`
}

// PairKey builds the idempotency key under which a match is recorded.
func PairKey(a, b Fingerprint) string {
	return string(a) + "_" + string(b)
}

// ExpiredEntry is a pending document whose waiting period ran out this cycle.
type ExpiredEntry struct {
	Side        Side
	Fingerprint Fingerprint
	Locator     string
	DaysWaiting int
}

// ScanMode selects how much of the date-partitioned tree a scan visits.
type ScanMode int

const (
	// ScanFull visits every partition. Forced on the very first cycle.
	ScanFull ScanMode = iota
	// ScanWindowed skips partitions wholly outside a trailing window. It is a
	// liveness optimization only and relies on documents never being deposited
	// into a partition after its window has closed.
	ScanWindowed
)

func (m ScanMode) String() string {
	if m == ScanFull {
		return "full"
	}
	return "windowed"
}

// ScanCounts reports what a single directory scan saw besides the emitted records.
type ScanCounts struct {
	New             int
	SkippedResolved int
	SkippedOld      int
}
