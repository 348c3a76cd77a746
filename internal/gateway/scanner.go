package gateway

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"settlematch/internal/domain"
)

// Bucket layout below each side's root: <MMYY>/<DDMMYY>/<side subpath>/*.<ext>.
var (
	monthBucketPattern = regexp.MustCompile(`^\d{4}$`)
	dayBucketPattern   = regexp.MustCompile(`^\d{6}$`)
)

// SideSource describes where one side's documents are deposited.
type SideSource struct {
	// Root holds the date-partitioned tree.
	Root string
	// Subpath is the fixed directory chain below each day bucket.
	Subpath []string
	// NestedSubpath, when non-empty, is a directory chain searched recursively
	// below Subpath; documents are collected from every directory ending in it.
	NestedSubpath []string
}

// Scanner walks the date-partitioned document trees and emits Records for
// documents whose fingerprint is not yet resolved. Re-scanning is always safe:
// resolved fingerprints are filtered, everything else is re-emitted.
//
// Windowed mode assumes documents are never deposited into a partition after
// its trailing window has closed. A deposit that violates this is only picked
// up by a later full scan.
type Scanner struct {
	sides      map[domain.Side]SideSource
	extractor  TextExtractor
	parser     RecordParser
	docExt     string
	windowDays int
	startDate  time.Time // zero means no lower bound

	Clock func() time.Time
}

// NewScanner wires a scanner over both side sources. startDate, when non-zero,
// excludes all month buckets before it regardless of scan mode.
func NewScanner(sides map[domain.Side]SideSource, extractor TextExtractor, parser RecordParser, docExt string, windowDays int, startDate time.Time) *Scanner {
	if docExt == "" {
		docExt = ".pdf"
	}
	if windowDays <= 0 {
		windowDays = 10
	}
	return &Scanner{
		sides:      sides,
		extractor:  extractor,
		parser:     parser,
		docExt:     docExt,
		windowDays: windowDays,
		startDate:  startDate,
		Clock:      time.Now,
	}
}

// Scan walks one side's tree. resolved filters out fingerprints that must never
// be considered again; filtered documents are counted, not emitted.
func (s *Scanner) Scan(ctx context.Context, side domain.Side, mode domain.ScanMode, resolved func(domain.Fingerprint) bool) ([]domain.Record, domain.ScanCounts, error) {
	var (
		records []domain.Record
		counts  domain.ScanCounts
	)

	src, ok := s.sides[side]
	if !ok || src.Root == "" {
		log.Warnf("[Scanner] no source configured for side %s", side)
		return nil, counts, nil
	}

	var cutoff time.Time
	if mode == domain.ScanWindowed {
		cutoff = s.Clock().AddDate(0, 0, -s.windowDays)
	}

	months, err := os.ReadDir(src.Root)
	if err != nil {
		// A missing root is not fatal for the cycle; the side simply yields
		// nothing and the next cycle retries.
		log.Errorf("[Scanner] cannot read %s root %s: %v", side.Label(), src.Root, err)
		return nil, counts, nil
	}

	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return nil, counts, err
		}
		if !month.IsDir() || !monthBucketPattern.MatchString(month.Name()) {
			continue
		}

		monthStart, ok := monthBucketDate(month.Name())
		if ok && !s.startDate.IsZero() && monthStart.Before(s.startDate) {
			counts.SkippedOld++
			continue
		}
		if ok && !cutoff.IsZero() {
			windowMonth := time.Date(cutoff.Year(), cutoff.Month(), 1, 0, 0, 0, 0, time.UTC)
			if monthStart.Before(windowMonth) {
				continue
			}
		}

		monthPath := filepath.Join(src.Root, month.Name())
		days, err := os.ReadDir(monthPath)
		if err != nil {
			log.Warnf("[Scanner] cannot read month bucket %s: %v", monthPath, err)
			continue
		}

		for _, day := range days {
			if !day.IsDir() || !dayBucketPattern.MatchString(day.Name()) {
				continue
			}
			dayPath := filepath.Join(monthPath, day.Name())

			if !cutoff.IsZero() {
				if info, err := os.Stat(dayPath); err == nil && info.ModTime().Before(cutoff) {
					continue
				}
			}

			target := dayPath
			for _, sub := range src.Subpath {
				target = filepath.Join(target, sub)
			}
			if _, err := os.Stat(target); err != nil {
				continue
			}

			for _, dir := range s.documentDirs(target, src.NestedSubpath) {
				s.scanDocuments(dir, side, resolved, &records, &counts)
			}
		}
	}

	if counts.SkippedOld > 0 {
		log.Infof("[Scanner] side %s: %d month buckets before the start date skipped", side, counts.SkippedOld)
	}
	log.Infof("[Scanner] side %s (%s): %d new, %d already resolved", side, mode, counts.New, counts.SkippedResolved)
	return records, counts, nil
}

// documentDirs resolves which directories below target actually hold documents.
// Without a nested subpath that is target itself; otherwise every directory
// whose path ends in the nested chain.
func (s *Scanner) documentDirs(target string, nested []string) []string {
	if len(nested) == 0 {
		return []string{target}
	}

	suffix := filepath.Join(nested...)
	var dirs []string
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("[Scanner] walk error below %s: %v", target, err)
			return nil
		}
		if d.IsDir() && strings.HasSuffix(path, string(filepath.Separator)+suffix) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		log.Warnf("[Scanner] failed to walk %s: %v", target, err)
	}
	return dirs
}

// scanDocuments fingerprints, extracts and parses every document in dir.
// Extraction and parse failures are logged and skipped without resolving the
// fingerprint, so the document is retried on the next cycle.
func (s *Scanner) scanDocuments(dir string, side domain.Side, resolved func(domain.Fingerprint) bool, records *[]domain.Record, counts *domain.ScanCounts) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("[Scanner] cannot read document directory %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), s.docExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		fp, err := Digest(path)
		if err != nil {
			log.Warnf("[Scanner] skipping unfingerprintable %s: %v", path, err)
			continue
		}
		if resolved(fp) {
			counts.SkippedResolved++
			continue
		}

		text, err := s.extractor.ExtractText(path)
		if err != nil {
			log.Warnf("[Scanner] skipping unreadable document %s: %v", path, err)
			continue
		}
		rec, err := s.parser.Parse(side, text, path)
		if err != nil {
			log.Warnf("[Scanner] skipping unparseable document %s: %v", path, err)
			continue
		}
		rec.Fingerprint = fp
		*records = append(*records, rec)
		counts.New++
	}
}

// monthBucketDate interprets a MMYY bucket name as the first day of its month.
func monthBucketDate(name string) (time.Time, bool) {
	month, err := strconv.Atoi(name[:2])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(name[2:])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(2000+year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}
