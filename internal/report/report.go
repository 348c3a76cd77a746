// Package report renders cycle statistics and matched/unmatched listings for
// external consumption. The core never retains any of this.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"

	"settlematch/internal/domain"
	"settlematch/internal/usecase"
)

const timestampLayout = "20060102_150405"

// Write drops the cycle's reports into dir: statistics as JSON, the matched
// and per-side unmatched listings as CSV. Nothing is written for empty lists.
func Write(dir string, at time.Time, result *usecase.CycleResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	ts := at.Format(timestampLayout)

	if result.Stats != nil {
		data, err := RenderStats(result.Stats)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("statistics_%s.json", ts))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if len(result.Pairs) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("matches_%s.csv", ts))
		if err := writeCSV(path, matchRows(result.Pairs)); err != nil {
			return err
		}
	}
	if len(result.ResidualA) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("unmatched_advice_%s.csv", ts))
		if err := writeCSV(path, recordRows(result.ResidualA)); err != nil {
			return err
		}
	}
	if len(result.ResidualB) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("unmatched_instruction_%s.csv", ts))
		if err := writeCSV(path, recordRows(result.ResidualB)); err != nil {
			return err
		}
	}

	log.Infof("[Report] reports written to %s", dir)
	return nil
}

// RenderStats serializes cycle statistics as indented JSON.
func RenderStats(stats *domain.CycleStats) ([]byte, error) {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode statistics: %w", err)
	}
	return append(data, '\n'), nil
}

// Summary writes the human-readable cycle summary.
func Summary(w io.Writer, stats *domain.CycleStats) {
	fmt.Fprintln(w, "================ RECONCILIATION SUMMARY ================")
	fmt.Fprintf(w, "Total advices:            %d\n", stats.TotalA)
	fmt.Fprintf(w, "Total instructions:       %d\n", stats.TotalB)
	fmt.Fprintf(w, "Matched pairs:            %d\n", stats.Matched)
	fmt.Fprintf(w, "Advices unmatched:        %d\n", stats.UnmatchedA)
	fmt.Fprintf(w, "Instructions unmatched:   %d\n", stats.UnmatchedB)
	fmt.Fprintf(w, "Expired this cycle:       %d advice / %d instruction\n", stats.ExpiredA, stats.ExpiredB)
	fmt.Fprintf(w, "Matching rate:            %.2f%%\n", stats.MatchingRate)
	fmt.Fprintln(w, "========================================================")
}

func matchRows(pairs []domain.MatchPair) [][]string {
	rows := [][]string{{
		"advice_file", "instruction_file", "reference", "transaction_ref",
		"amount", "date", "debit_account", "credit_account", "matched_at",
	}}
	for _, p := range pairs {
		rows = append(rows, []string{
			p.LocatorA, p.LocatorB, p.Reference, p.TransactionRef,
			p.Amount.String(), p.Date, p.DebitAccount, p.CreditAccount,
			p.MatchedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func recordRows(records []domain.Record) [][]string {
	rows := [][]string{{
		"file", "reference", "transaction_ref", "amount", "date",
		"debit_account", "credit_account",
	}}
	for _, r := range records {
		rows = append(rows, []string{
			r.Locator, r.Reference, r.TransactionRef, r.Amount.String(),
			r.Date, r.DebitAccount, r.CreditAccount,
		})
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
