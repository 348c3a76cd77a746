package usecase

import (
	"sort"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"settlematch/internal/domain"
)

// Matcher pairs A-side and B-side records with an exact-equality rule cascade.
// Assignment is greedy and order-dependent: the outer loop walks A records in
// scan order and each pairs with the first B record, in scan order, that
// satisfies any rule. Candidate lookup goes through indexes instead of a full
// pairwise scan; the indexes preserve scan order within each bucket, so the
// outcome is identical.
type Matcher struct {
	extractor TextExtractor
	parser    RecordParser

	Clock func() time.Time
}

// NewMatcher creates a matcher that re-parses pending documents through the
// given extractor and parser.
func NewMatcher(extractor TextExtractor, parser RecordParser) *Matcher {
	return &Matcher{extractor: extractor, parser: parser, Clock: time.Now}
}

// Match pairs the combined pool of newly scanned and still-pending records of
// both sides, mutating state: confirmed pairs are recorded and resolved,
// unmatched new records enter the pending pool. The residuals are all records
// of the combined pool left unmatched this cycle, for reporting only.
func (m *Matcher) Match(newA, newB []domain.Record, state *domain.State) (pairs []domain.MatchPair, residualA, residualB []domain.Record) {
	now := m.Clock()

	newSetA := fingerprintSet(newA)
	newSetB := fingerprintSet(newB)

	// The pool is a union: a pending document that the scanner re-emitted this
	// cycle (pending fingerprints are not resolved) must not appear twice.
	poolA := append(append([]domain.Record(nil), newA...), m.reparsePending(domain.SideA, state, newSetA)...)
	poolB := append(append([]domain.Record(nil), newB...), m.reparsePending(domain.SideB, state, newSetB)...)

	idx := indexBySide(poolB)
	consumedB := make([]bool, len(poolB))

	for _, a := range poolA {
		matched := false
		for _, pos := range idx.candidates(a) {
			if consumedB[pos] {
				continue
			}
			b := poolB[pos]
			if state.IsMatched(domain.PairKey(a.Fingerprint, b.Fingerprint)) {
				continue
			}
			if !rulesMatch(a, b) {
				continue
			}

			pair := buildPair(a, b, now)
			state.RecordMatch(a.Fingerprint, b.Fingerprint, pair)
			pairs = append(pairs, pair)
			consumedB[pos] = true
			matched = true
			break
		}

		if !matched {
			residualA = append(residualA, a)
			if _, isNew := newSetA[a.Fingerprint]; isNew {
				state.AddPending(domain.SideA, a.Fingerprint, a.Locator, now)
			}
		}
	}

	for pos, b := range poolB {
		if consumedB[pos] {
			continue
		}
		residualB = append(residualB, b)
		if _, isNew := newSetB[b.Fingerprint]; isNew {
			state.AddPending(domain.SideB, b.Fingerprint, b.Locator, now)
		}
	}

	if len(pairs) > 0 {
		log.Infof("[Matcher] %d new pairs confirmed", len(pairs))
	}
	return pairs, residualA, residualB
}

// rulesMatch evaluates the cascade for one candidate pair; the first rule that
// fires wins and no further rules are checked.
func rulesMatch(a, b domain.Record) bool {
	// Rule 1: strong key, transaction references present on both sides and equal.
	if a.TransactionRef != "" && b.TransactionRef != "" && a.TransactionRef == b.TransactionRef {
		return true
	}

	amountClose := a.Amount.Sub(b.Amount).Abs().LessThan(domain.AmountTolerance)

	// Rule 2: triangulated key, amount + date + a shared account on either leg.
	if amountClose && a.Date == b.Date &&
		(a.DebitAccount == b.DebitAccount || a.CreditAccount == b.CreditAccount) {
		return true
	}

	// Rule 3: weak key, primary reference plus amount.
	return a.Reference == b.Reference && amountClose
}

func buildPair(a, b domain.Record, at time.Time) domain.MatchPair {
	debit := a.DebitAccount
	if debit == "" {
		debit = b.DebitAccount
	}
	return domain.MatchPair{
		LocatorA:       a.Locator,
		LocatorB:       b.Locator,
		MatchedAt:      at,
		Reference:      a.Reference,
		TransactionRef: a.TransactionRef,
		Amount:         a.Amount,
		Date:           a.Date,
		DebitAccount:   debit,
		CreditAccount:  b.CreditAccount,
	}
}

// reparsePending rebuilds Records for one side's waiting pool, excluding
// fingerprints already present in this cycle's scan batch. Entries are ordered
// by first-seen time (locator as tiebreak) so pool order is stable across
// runs. A pending document that cannot be read any more is silently excluded
// from this cycle; its entry stays in the pool and expires on schedule.
func (m *Matcher) reparsePending(side domain.Side, state *domain.State, inBatch map[domain.Fingerprint]struct{}) []domain.Record {
	pool := state.Pending(side)
	if len(pool) == 0 {
		return nil
	}

	type pendingDoc struct {
		fp    domain.Fingerprint
		entry domain.PendingEntry
	}
	docs := make([]pendingDoc, 0, len(pool))
	for fp, entry := range pool {
		if _, ok := inBatch[fp]; ok {
			continue
		}
		docs = append(docs, pendingDoc{fp: fp, entry: entry})
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].entry.FirstSeen.Equal(docs[j].entry.FirstSeen) {
			return docs[i].entry.FirstSeen.Before(docs[j].entry.FirstSeen)
		}
		return docs[i].entry.Locator < docs[j].entry.Locator
	})

	var records []domain.Record
	for _, doc := range docs {
		text, err := m.extractor.ExtractText(doc.entry.Locator)
		if err != nil {
			log.Debugf("[Matcher] pending %s document unavailable: %s: %v", side.Label(), doc.entry.Locator, err)
			continue
		}
		rec, err := m.parser.Parse(side, text, doc.entry.Locator)
		if err != nil {
			log.Warnf("[Matcher] pending %s document unparseable: %s: %v", side.Label(), doc.entry.Locator, err)
			continue
		}
		rec.Fingerprint = doc.fp
		records = append(records, rec)
	}
	return records
}

func fingerprintSet(records []domain.Record) map[domain.Fingerprint]struct{} {
	set := make(map[domain.Fingerprint]struct{}, len(records))
	for _, rec := range records {
		set[rec.Fingerprint] = struct{}{}
	}
	return set
}

// recordIndex indexes the B pool by each rule's lookup key. Positions within a
// bucket stay in scan order.
type recordIndex struct {
	byTrx     map[string][]int
	byAmtDate map[string][]int
	byRef     map[string][]int
}

func indexBySide(pool []domain.Record) *recordIndex {
	idx := &recordIndex{
		byTrx:     make(map[string][]int),
		byAmtDate: make(map[string][]int),
		byRef:     make(map[string][]int),
	}
	for pos, rec := range pool {
		if rec.TransactionRef != "" {
			idx.byTrx[rec.TransactionRef] = append(idx.byTrx[rec.TransactionRef], pos)
		}
		key := amountDateKey(amountCents(rec.Amount), rec.Date)
		idx.byAmtDate[key] = append(idx.byAmtDate[key], pos)
		idx.byRef[rec.Reference] = append(idx.byRef[rec.Reference], pos)
	}
	return idx
}

// candidates returns every B position that could possibly satisfy a rule
// against a, ascending so the greedy loop still picks the first in scan order.
// The amount buckets cover the neighbors because records less than the
// tolerance apart can land in adjacent cent buckets.
func (idx *recordIndex) candidates(a domain.Record) []int {
	seen := make(map[int]struct{})

	if a.TransactionRef != "" {
		for _, pos := range idx.byTrx[a.TransactionRef] {
			seen[pos] = struct{}{}
		}
	}
	cents := amountCents(a.Amount)
	for _, c := range []int64{cents - 1, cents, cents + 1} {
		for _, pos := range idx.byAmtDate[amountDateKey(c, a.Date)] {
			seen[pos] = struct{}{}
		}
	}
	for _, pos := range idx.byRef[a.Reference] {
		seen[pos] = struct{}{}
	}

	out := make([]int, 0, len(seen))
	for pos := range seen {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

func amountCents(d decimal.Decimal) int64 {
	return d.Shift(2).Floor().IntPart()
}

func amountDateKey(cents int64, date string) string {
	return strconv.FormatInt(cents, 10) + "|" + date
}
