package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads 3-line NORAD TLE format from r and returns the records keyed
// by name. Records come in fixed groups of three non-empty lines (name,
// element line 1, element line 2); blank lines between groups are skipped.
// A group whose element lines do not carry the "1 "/"2 " markers is dropped
// with a warning; it never fails the whole load.
func Parse(r io.Reader, logger *slog.Logger) (map[string]ElementRecord, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	records := make(map[string]ElementRecord)
	for i := 0; i+2 < len(lines); i += 3 {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			continue
		}

		records[name] = ElementRecord{
			Name:  name,
			Line1: line1,
			Line2: line2,
		}
	}

	return records, nil
}

// CatalogNumber extracts the NORAD catalog number from element line 1
// (columns 3-7).
func CatalogNumber(line1 string) (int, error) {
	if len(line1) < 7 {
		return 0, fmt.Errorf("line1 too short for catalog number: %q", line1)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return 0, fmt.Errorf("invalid catalog number %q: %w", line1[2:7], err)
	}
	return n, nil
}

// EpochFromLine1 extracts the element set epoch from line 1 (columns 19-32,
// YYDDD.DDDDDDDD format). Year 00-56 → 2000s, 57-99 → 1900s.
func EpochFromLine1(line1 string) (time.Time, error) {
	if len(line1) < 32 {
		return time.Time{}, fmt.Errorf("line1 too short for epoch: %q", line1)
	}
	return parseEpoch(strings.TrimSpace(line1[18:32]))
}

func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
