package usecase

import (
	"context"

	"settlematch/internal/domain"
)

// The usecase layer depends on these collaborator interfaces, not on the
// concrete gateway implementations.
//
//go:generate mockgen -destination=mocks/mock_collaborators.go -source=interface.go

// TextExtractor pulls the plain text out of a page-oriented document.
type TextExtractor interface {
	ExtractText(locator string) (string, error)
}

// RecordParser extracts the identifying fields of a document out of its text.
type RecordParser interface {
	Parse(side domain.Side, text, locator string) (domain.Record, error)
}

// DocumentScanner yields the not-yet-resolved records of one side. resolved
// filters out fingerprints that must never be considered again.
type DocumentScanner interface {
	Scan(ctx context.Context, side domain.Side, mode domain.ScanMode, resolved func(domain.Fingerprint) bool) ([]domain.Record, domain.ScanCounts, error)
}

// StateStore loads and persists the reconciliation state snapshot.
type StateStore interface {
	Load() (*domain.State, error)
	Save(state *domain.State) error
}

// Archiver places matched pairs and expired documents into the archive trees.
// Placement is best-effort; implementations log failures and report how many
// items were fully copied.
type Archiver interface {
	PlaceMatched(pairs []domain.MatchPair) int
	PlaceExpired(entries []domain.ExpiredEntry) int
}

// Locker serializes cycles across processes sharing one state snapshot.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}
