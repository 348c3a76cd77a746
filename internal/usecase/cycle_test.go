package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlematch/internal/domain"
	"settlematch/internal/usecase"
	mock_usecase "settlematch/internal/usecase/mocks"
)

type cycleMocks struct {
	scanner   *mock_usecase.MockDocumentScanner
	extractor *mock_usecase.MockTextExtractor
	parser    *mock_usecase.MockRecordParser
	store     *mock_usecase.MockStateStore
	archive   *mock_usecase.MockArchiver
	locker    *mock_usecase.MockLocker
}

func newCycleUseCase(t *testing.T, withLocker bool) (*usecase.ReconcileUseCase, cycleMocks) {
	ctrl := gomock.NewController(t)
	m := cycleMocks{
		scanner:   mock_usecase.NewMockDocumentScanner(ctrl),
		extractor: mock_usecase.NewMockTextExtractor(ctrl),
		parser:    mock_usecase.NewMockRecordParser(ctrl),
		store:     mock_usecase.NewMockStateStore(ctrl),
		archive:   mock_usecase.NewMockArchiver(ctrl),
	}

	matcher := usecase.NewMatcher(m.extractor, m.parser)
	matcher.Clock = func() time.Time { return cycleTime }

	var locker usecase.Locker
	if withLocker {
		m.locker = mock_usecase.NewMockLocker(ctrl)
		locker = m.locker
	}

	uc := usecase.NewReconcileUseCase(m.scanner, matcher, m.store, m.archive, locker)
	uc.Clock = func() time.Time { return cycleTime }
	return uc, m
}

func expectScan(m cycleMocks, side domain.Side, mode domain.ScanMode, records []domain.Record) {
	m.scanner.EXPECT().
		Scan(gomock.Any(), side, mode, gomock.Any()).
		Return(records, domain.ScanCounts{New: len(records)}, nil)
}

func TestRunCycle_FirstRunForcesFullScanAndPersists(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	state := domain.NewState() // LastRun nil: first run
	m.store.EXPECT().Load().Return(state, nil)

	a := record(domain.SideA, "fpA", "TRX1", "REFA", "010125", "100.00", "ACC1", "")
	b := record(domain.SideB, "fpB", "TRX1", "REFB", "010125", "100.00", "ACC1", "IBAN2")
	expectScan(m, domain.SideA, domain.ScanFull, []domain.Record{a})
	expectScan(m, domain.SideB, domain.ScanFull, []domain.Record{b})

	m.archive.EXPECT().PlaceMatched(gomock.Len(1)).Return(1)
	m.store.EXPECT().Save(state).Return(nil)

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)

	require.Len(t, result.Pairs, 1)
	assert.False(t, result.ShortCycle)
	require.NotNil(t, state.LastRun)
	assert.True(t, state.LastRun.Equal(cycleTime))
	assert.Equal(t, 1, result.Stats.Matched)
	assert.Equal(t, float64(100), result.Stats.MatchingRate)
}

func TestRunCycle_SubsequentRunScansWindowed(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	state.AddPending(domain.SideA, "fpA", "/in/gone.pdf", cycleTime.AddDate(0, 0, -1))
	m.store.EXPECT().Load().Return(state, nil)

	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, nil)

	// The pending pool is non-empty, so the cycle still matches and persists.
	m.extractor.EXPECT().ExtractText("/in/gone.pdf").Return("", assert.AnError)
	m.store.EXPECT().Save(state).Return(nil)

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Pairs)
	assert.False(t, result.ShortCycle)
}

func TestRunCycle_ShortCircuitLeavesStateUntouched(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	m.store.EXPECT().Load().Return(state, nil)

	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, nil)
	// No Save expectation: an empty cycle must not persist.

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)

	assert.True(t, result.ShortCycle)
	assert.True(t, state.LastRun.Equal(lastRun), "the previous cycle timestamp survives a no-op cycle")
}

func TestRunCycle_LockedByAnotherProcess(t *testing.T) {
	uc, m := newCycleUseCase(t, true)
	m.locker.EXPECT().TryLock().Return(false, nil)
	// No Load: a held lock stops the cycle before any state access.

	_, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	assert.ErrorIs(t, err, usecase.ErrCycleLocked)
}

func TestRunCycle_LockReleasedAfterCycle(t *testing.T) {
	uc, m := newCycleUseCase(t, true)

	m.locker.EXPECT().TryLock().Return(true, nil)
	m.locker.EXPECT().Unlock().Return(nil)

	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	m.store.EXPECT().Load().Return(state, nil)
	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, nil)

	_, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)
}

func TestRunCycle_PersistFailureIsFatal(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	state := domain.NewState()
	m.store.EXPECT().Load().Return(state, nil)

	a := record(domain.SideA, "fpA", "TRX1", "REFA", "010125", "100.00", "ACC1", "")
	expectScan(m, domain.SideA, domain.ScanFull, []domain.Record{a})
	expectScan(m, domain.SideB, domain.ScanFull, nil)

	m.store.EXPECT().Save(state).Return(assert.AnError)

	_, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	assert.Error(t, err)
}

func TestRunCycle_SweepRunsAfterMatching(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	// A pending advice six days old whose counterpart arrives this very cycle:
	// it must match, not expire.
	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	state.AddPending(domain.SideA, "fpA", "/in/fpA.pdf", cycleTime.AddDate(0, 0, -6))
	m.store.EXPECT().Load().Return(state, nil)

	pendingRec := record(domain.SideA, "fpA", "TRX1", "REFA", "010125", "100.00", "ACC1", "")
	m.extractor.EXPECT().ExtractText("/in/fpA.pdf").Return("advice text", nil)
	m.parser.EXPECT().Parse(domain.SideA, "advice text", "/in/fpA.pdf").Return(pendingRec, nil)

	b := record(domain.SideB, "fpB", "TRX1", "REFB", "010125", "100.00", "ACC1", "IBAN2")
	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, []domain.Record{b})

	m.archive.EXPECT().PlaceMatched(gomock.Len(1)).Return(1)
	// No PlaceExpired expectation: nothing may expire in the cycle it matched.
	m.store.EXPECT().Save(state).Return(nil)

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)

	require.Len(t, result.Pairs, 1)
	assert.Empty(t, result.ExpiredA)
	assert.True(t, state.IsMatched(domain.PairKey("fpA", "fpB")))
}

func TestRunCycle_ConfiguredWaitingDaysOverridesSnapshot(t *testing.T) {
	uc, m := newCycleUseCase(t, false)
	uc.WaitingDays = 2

	// The snapshot carries the default 5-day window; the operator shortened it
	// to 2, so an instruction pending 3 days must expire this cycle.
	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	state.AddPending(domain.SideB, "fpB", "/in/fpB.pdf", cycleTime.AddDate(0, 0, -3))
	m.store.EXPECT().Load().Return(state, nil)

	lonely := record(domain.SideB, "fpB", "TRXB", "REFB", "010125", "75.00", "ACC2", "IBAN2")
	m.extractor.EXPECT().ExtractText("/in/fpB.pdf").Return("instr text", nil)
	m.parser.EXPECT().Parse(domain.SideB, "instr text", "/in/fpB.pdf").Return(lonely, nil)

	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, nil)

	m.archive.EXPECT().PlaceExpired(gomock.Len(1)).Return(1)
	m.store.EXPECT().Save(state).Return(nil)

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)

	require.Len(t, result.ExpiredB, 1)
	assert.Equal(t, 2, state.WaitingDays, "the override is persisted with the snapshot")
}

func TestRunCycle_ExpiredDocumentsArePlaced(t *testing.T) {
	uc, m := newCycleUseCase(t, false)

	lastRun := cycleTime.Add(-5 * time.Minute)
	state := domain.NewState()
	state.LastRun = &lastRun
	state.AddPending(domain.SideB, "fpB", "/in/fpB.pdf", cycleTime.AddDate(0, 0, -6))
	m.store.EXPECT().Load().Return(state, nil)

	lonely := record(domain.SideB, "fpB", "TRXB", "REFB", "010125", "75.00", "ACC2", "IBAN2")
	m.extractor.EXPECT().ExtractText("/in/fpB.pdf").Return("instr text", nil)
	m.parser.EXPECT().Parse(domain.SideB, "instr text", "/in/fpB.pdf").Return(lonely, nil)

	expectScan(m, domain.SideA, domain.ScanWindowed, nil)
	expectScan(m, domain.SideB, domain.ScanWindowed, nil)

	m.archive.EXPECT().PlaceExpired(gomock.Len(1)).Return(1)
	m.store.EXPECT().Save(state).Return(nil)

	result, err := uc.RunCycle(context.Background(), usecase.CycleOptions{})
	require.NoError(t, err)

	require.Len(t, result.ExpiredB, 1)
	assert.Equal(t, domain.Fingerprint("fpB"), result.ExpiredB[0].Fingerprint)
	assert.True(t, state.IsResolved(domain.SideB, "fpB"))
	assert.True(t, state.PendingEmpty())
}
