package usecase

import (
	"sort"
	"time"

	"github.com/labstack/gommon/log"

	"settlematch/internal/domain"
)

// Sweep expires every pending entry that has waited at least the state's
// waiting period, measured in whole days. Expiry is terminal: the fingerprint
// joins the resolved set and the document is never reconsidered, even if its
// counterpart arrives later. Bounded pools are deliberately traded against the
// possibility of a late match.
//
// The sweep must run after matching within a cycle so a document is never
// expired in the same cycle it could have matched.
func Sweep(state *domain.State, now time.Time) (expiredA, expiredB []domain.ExpiredEntry) {
	expiredA = sweepSide(state, domain.SideA, now)
	expiredB = sweepSide(state, domain.SideB, now)
	if len(expiredA)+len(expiredB) > 0 {
		log.Infof("[Sweep] %d advice and %d instruction documents expired after %d days",
			len(expiredA), len(expiredB), state.WaitingDays)
	}
	return expiredA, expiredB
}

func sweepSide(state *domain.State, side domain.Side, now time.Time) []domain.ExpiredEntry {
	var expired []domain.ExpiredEntry
	for fp, entry := range state.Pending(side) {
		days := int(now.Sub(entry.FirstSeen).Hours() / 24)
		if days < state.WaitingDays {
			continue
		}
		expired = append(expired, domain.ExpiredEntry{
			Side:        side,
			Fingerprint: fp,
			Locator:     entry.Locator,
			DaysWaiting: days,
		})
	}

	// Stable order for placement and logs.
	sort.Slice(expired, func(i, j int) bool { return expired[i].Locator < expired[j].Locator })

	for _, entry := range expired {
		state.ExpirePending(side, entry.Fingerprint)
	}
	return expired
}
