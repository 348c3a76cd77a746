package gateway

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/log"

	"settlematch/internal/domain"
)

// FileArchiver copies matched pairs and expired unmatched documents into their
// archive trees, preserving the date-partitioned layout of the sources. Copies
// are best-effort: a failed copy is logged and the match or expiry decision
// stands regardless.
type FileArchiver struct {
	matchRoot     string
	unmatchedRoot string
}

// NewFileArchiver creates an archiver over the two archive roots.
func NewFileArchiver(matchRoot, unmatchedRoot string) *FileArchiver {
	return &FileArchiver{matchRoot: matchRoot, unmatchedRoot: unmatchedRoot}
}

// PlaceMatched copies this cycle's newly matched pairs into the matched tree,
// partitioned by the A-side document's date buckets. Both files of pair n are
// renamed "<n>_<own day bucket>_<original name>". It returns the number of
// pairs fully copied.
func (a *FileArchiver) PlaceMatched(pairs []domain.MatchPair) int {
	placed := 0
	for i, pair := range pairs {
		seq := i + 1

		monthA, dayA := dateBuckets(pair.LocatorA)
		if monthA == "" || dayA == "" {
			log.Warnf("[Archive] no date buckets in advice path %s", pair.LocatorA)
			continue
		}
		monthB, dayB := dateBuckets(pair.LocatorB)
		if monthB == "" || dayB == "" {
			log.Warnf("[Archive] no date buckets in instruction path %s", pair.LocatorB)
			continue
		}

		destDir := filepath.Join(a.matchRoot, monthA, dayA)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			log.Errorf("[Archive] cannot create %s: %v", destDir, err)
			continue
		}

		nameA := fmt.Sprintf("%d_%s_%s", seq, dayA, filepath.Base(pair.LocatorA))
		nameB := fmt.Sprintf("%d_%s_%s", seq, dayB, filepath.Base(pair.LocatorB))

		if err := copyFile(pair.LocatorA, filepath.Join(destDir, nameA)); err != nil {
			log.Errorf("[Archive] pair %d: %v", seq, err)
			continue
		}
		if err := copyFile(pair.LocatorB, filepath.Join(destDir, nameB)); err != nil {
			log.Errorf("[Archive] pair %d: %v", seq, err)
			continue
		}

		if dayA != dayB {
			log.Debugf("[Archive] pair %d spans day buckets %s and %s", seq, dayA, dayB)
		}
		placed++
	}
	if placed > 0 {
		log.Infof("[Archive] %d matched pairs copied to %s", placed, a.matchRoot)
	}
	return placed
}

// PlaceExpired copies this cycle's newly expired documents into the unmatched
// tree, partitioned by each document's own date buckets. Documents that have
// disappeared from disk are skipped; their expiry still stands.
func (a *FileArchiver) PlaceExpired(entries []domain.ExpiredEntry) int {
	placed := 0
	for _, entry := range entries {
		if _, err := os.Stat(entry.Locator); err != nil {
			log.Warnf("[Archive] expired %s document gone from disk: %s", entry.Side.Label(), entry.Locator)
			continue
		}

		month, day := dateBuckets(entry.Locator)
		if month == "" || day == "" {
			log.Warnf("[Archive] no date buckets in expired path %s", entry.Locator)
			continue
		}

		destDir := filepath.Join(a.unmatchedRoot, entry.Side.Label(), month, day)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			log.Errorf("[Archive] cannot create %s: %v", destDir, err)
			continue
		}
		if err := copyFile(entry.Locator, filepath.Join(destDir, filepath.Base(entry.Locator))); err != nil {
			log.Errorf("[Archive] expired copy failed: %v", err)
			continue
		}
		placed++
	}
	if placed > 0 {
		log.Infof("[Archive] %d expired documents copied to %s", placed, a.unmatchedRoot)
	}
	return placed
}

// dateBuckets recovers the <MMYY>/<DDMMYY> partition a document came from by
// scanning its path for the first adjacent bucket pair.
func dateBuckets(locator string) (month, day string) {
	parts := strings.Split(locator, string(filepath.Separator))
	for i, part := range parts {
		if monthBucketPattern.MatchString(part) {
			if i+1 < len(parts) && dayBucketPattern.MatchString(parts[i+1]) {
				return part, parts[i+1]
			}
		}
	}
	return "", ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
