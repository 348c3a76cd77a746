package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"settlematch/internal/domain"
)

// ErrCycleLocked is returned when another process already holds the cycle lock.
var ErrCycleLocked = errors.New("another reconciliation cycle is already running")

// CycleOptions controls a single cycle run.
type CycleOptions struct {
	// FullScan visits every partition instead of the trailing window.
	// A first run (no prior cycle timestamp) is always a full scan.
	FullScan bool
	// Verbose enables cycle statistics for reporting.
	Verbose bool
}

// CycleResult carries everything a cycle produced, for reporting only; the
// persistent outcome lives in the state snapshot.
type CycleResult struct {
	Stats      *domain.CycleStats
	Pairs      []domain.MatchPair
	ResidualA  []domain.Record
	ResidualB  []domain.Record
	ExpiredA   []domain.ExpiredEntry
	ExpiredB   []domain.ExpiredEntry
	ShortCycle bool // nothing to do, state untouched
}

// ReconcileUseCase sequences one reconciliation cycle:
// scan -> match -> expiry sweep -> placement -> persist.
type ReconcileUseCase struct {
	scanner DocumentScanner
	matcher *Matcher
	store   StateStore
	archive Archiver
	locker  Locker

	Clock func() time.Time
	// WaitingDays, when positive, overrides the waiting period carried in the
	// snapshot. Configured by the operator; zero keeps the snapshot's value.
	WaitingDays int
}

// NewReconcileUseCase wires the orchestrator. locker may be nil when
// cross-process exclusion is handled elsewhere (tests, one-shot invocations
// with a disabled lock).
func NewReconcileUseCase(scanner DocumentScanner, matcher *Matcher, store StateStore, archive Archiver, locker Locker) *ReconcileUseCase {
	return &ReconcileUseCase{
		scanner: scanner,
		matcher: matcher,
		store:   store,
		archive: archive,
		locker:  locker,
		Clock:   time.Now,
	}
}

// RunCycle executes one full cycle. Per-document failures are absorbed and
// logged; the only fatal errors are a held lock, an unloadable snapshot and a
// failed persist. An interrupted cycle leaves the previous snapshot intact.
func (uc *ReconcileUseCase) RunCycle(ctx context.Context, opts CycleOptions) (*CycleResult, error) {
	if uc.locker != nil {
		held, err := uc.locker.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !held {
			return nil, ErrCycleLocked
		}
		defer func() {
			if err := uc.locker.Unlock(); err != nil {
				log.Errorf("[Cycle] failed to release cycle lock: %v", err)
			}
		}()
	}

	start := uc.Clock()
	cycleID := uuid.NewString()

	state, err := uc.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load reconciliation state: %w", err)
	}
	if uc.WaitingDays > 0 {
		state.WaitingDays = uc.WaitingDays
	}

	mode := domain.ScanWindowed
	firstRun := state.LastRun == nil
	if opts.FullScan || firstRun {
		mode = domain.ScanFull
	}
	if firstRun {
		log.Infof("[Cycle %s] first run, forcing a full scan", cycleID)
	} else {
		log.Infof("[Cycle %s] starting (%s scan, last run %s)", cycleID, mode, state.LastRun.Format(time.RFC3339))
	}

	newA, _, err := uc.scanner.Scan(ctx, domain.SideA, mode, func(fp domain.Fingerprint) bool {
		return state.IsResolved(domain.SideA, fp)
	})
	if err != nil {
		return nil, fmt.Errorf("advice scan aborted: %w", err)
	}
	newB, _, err := uc.scanner.Scan(ctx, domain.SideB, mode, func(fp domain.Fingerprint) bool {
		return state.IsResolved(domain.SideB, fp)
	})
	if err != nil {
		return nil, fmt.Errorf("instruction scan aborted: %w", err)
	}

	// Idempotent no-op: nothing new on either side and nothing waiting means
	// there is no state change worth matching, sweeping or persisting.
	if len(newA) == 0 && len(newB) == 0 && state.PendingEmpty() {
		log.Infof("[Cycle %s] nothing to process", cycleID)
		return &CycleResult{
			Stats:      &domain.CycleStats{CycleID: cycleID, Elapsed: uc.Clock().Sub(start)},
			ShortCycle: true,
		}, nil
	}

	pairs, residualA, residualB := uc.matcher.Match(newA, newB, state)

	expiredA, expiredB := Sweep(state, uc.Clock())

	if len(pairs) > 0 {
		uc.archive.PlaceMatched(pairs)
	}
	if len(expiredA)+len(expiredB) > 0 {
		expired := append(append([]domain.ExpiredEntry(nil), expiredA...), expiredB...)
		uc.archive.PlaceExpired(expired)
	}

	state.LastRun = &start
	if err := uc.store.Save(state); err != nil {
		return nil, fmt.Errorf("failed to persist reconciliation state: %w", err)
	}

	result := &CycleResult{
		Pairs:     pairs,
		ResidualA: residualA,
		ResidualB: residualB,
		ExpiredA:  expiredA,
		ExpiredB:  expiredB,
	}
	result.Stats = buildStats(cycleID, len(newA), len(newB), pairs, result, uc.Clock().Sub(start))

	log.Infof("[Cycle %s] done in %s: %d matched, %d/%d residual, %d/%d expired",
		cycleID, result.Stats.Elapsed.Round(time.Millisecond),
		len(pairs), len(residualA), len(residualB), len(expiredA), len(expiredB))
	return result, nil
}

func buildStats(cycleID string, totalA, totalB int, pairs []domain.MatchPair, result *CycleResult, elapsed time.Duration) *domain.CycleStats {
	stats := &domain.CycleStats{
		CycleID:    cycleID,
		TotalA:     totalA,
		TotalB:     totalB,
		Matched:    len(pairs),
		UnmatchedA: len(result.ResidualA),
		UnmatchedB: len(result.ResidualB),
		ExpiredA:   len(result.ExpiredA),
		ExpiredB:   len(result.ExpiredB),
		Elapsed:    elapsed,
	}

	base := totalA
	if totalB > base {
		base = totalB
	}
	if base > 0 {
		rate := float64(len(pairs)) / float64(base) * 100
		stats.MatchingRate = math.Round(rate*100) / 100
	}

	if len(pairs) > 0 {
		stats.DailyVolumes = make(map[string]int)
		for _, pair := range pairs {
			stats.DailyVolumes[pair.Date]++
		}
	}
	return stats
}
