package domain

import "time"

// CycleStats summarizes one reconciliation cycle for reporting. It is produced
// by the orchestrator and consumed by external reporting; the core never
// retains it.
type CycleStats struct {
	CycleID      string         `json:"cycle_id"`
	TotalA       int            `json:"total_advice"`
	TotalB       int            `json:"total_instruction"`
	Matched      int            `json:"matched"`
	UnmatchedA   int            `json:"advice_unmatched"`
	UnmatchedB   int            `json:"instruction_unmatched"`
	ExpiredA     int            `json:"advice_expired"`
	ExpiredB     int            `json:"instruction_expired"`
	MatchingRate float64        `json:"matching_rate"`
	DailyVolumes map[string]int `json:"daily_volumes,omitempty"`
	Elapsed      time.Duration  `json:"-"`
}
