package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Physiological bounds used for heart-rate warnings.
const (
	MinHeartRate = 0
	MaxHeartRate = 250
)

// Largest magnitudes that convert to the record's integer fields without
// overflow. Durations stay within the exactly representable float range.
const (
	maxDurationSeconds = 1 << 53
	maxHeartRateValue  = math.MaxInt32
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// Validate checks a batch against the structural and value-range rules.
// It never mutates the batch and never fails: problems are reported as
// errors (the batch must not be written) or warnings (the batch may be
// written).
func Validate(batch RawBatch) Report {
	report := Report{Errors: []string{}, Warnings: []string{}}

	var missing []string
	for _, col := range Columns {
		if batch.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	for _, col := range []string{ColumnDuration, ColumnDistance} {
		idx := batch.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		invalid, negative, fractional, tooLarge := false, false, false, false
		for _, row := range batch.Rows {
			v, ok := parseNumber(batch.Value(row, idx))
			if !ok {
				invalid = true
				continue
			}
			if v < 0 {
				negative = true
			}
			if col == ColumnDuration {
				if v != math.Trunc(v) {
					fractional = true
				}
				if v > maxDurationSeconds {
					tooLarge = true
				}
			}
		}
		if invalid {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains invalid values", col))
		}
		if negative {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains negative values", col))
		}
		if fractional {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains non-integer values", col))
		}
		if tooLarge {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains values too large to store", col))
		}
	}

	for _, col := range []string{ColumnAvgHeartRate, ColumnMaxHeartRate} {
		idx := batch.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		invalid, outOfRange, tooLarge := false, false, false
		for _, row := range batch.Rows {
			v, ok := parseNumber(batch.Value(row, idx))
			if !ok {
				invalid = true
				continue
			}
			if math.Abs(v) > maxHeartRateValue {
				tooLarge = true
				continue
			}
			if v < MinHeartRate || v > MaxHeartRate {
				outOfRange = true
			}
		}
		if outOfRange {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s contains values outside normal range [%d, %d]", col, MinHeartRate, MaxHeartRate))
		}
		if invalid {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains invalid values", col))
		}
		if tooLarge {
			report.Errors = append(report.Errors, fmt.Sprintf("%s contains values too large to store", col))
		}
	}

	if idx := batch.ColumnIndex(ColumnDate); idx >= 0 {
		for _, row := range batch.Rows {
			if _, ok := parseDate(batch.Value(row, idx)); !ok {
				report.Errors = append(report.Errors, "date contains invalid values")
				break
			}
		}
	}

	var unknown []string
	for _, col := range batch.Columns {
		if !isKnownColumn(col) {
			unknown = append(unknown, col)
		}
	}
	if len(unknown) > 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("unknown columns: %s", strings.Join(unknown, ", ")))
	}

	if idx := batch.ColumnIndex(ColumnActivityID); idx >= 0 {
		seen := make(map[string]struct{}, len(batch.Rows))
		empty, dup := false, false
		for _, row := range batch.Rows {
			id := strings.TrimSpace(batch.Value(row, idx))
			if id == "" {
				empty = true
				continue
			}
			if _, ok := seen[id]; ok {
				dup = true
			}
			seen[id] = struct{}{}
		}
		if empty {
			report.Errors = append(report.Errors, "activity_id contains empty values")
		}
		if dup {
			report.Warnings = append(report.Warnings, "activity_id contains duplicates; the last occurrence wins")
		}
	}

	return report
}

func isKnownColumn(name string) bool {
	for _, col := range Columns {
		if col == name {
			return true
		}
	}
	return false
}

func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
