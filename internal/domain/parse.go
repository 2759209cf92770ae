package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ParseBatch converts a validated RawBatch into typed records. Callers are
// expected to run Validate first; any cell that still cannot be coerced is
// reported with its row number.
func ParseBatch(batch RawBatch) ([]Record, error) {
	idx := make(map[string]int, len(Columns))
	for _, col := range Columns {
		i := batch.ColumnIndex(col)
		if i < 0 {
			return nil, fmt.Errorf("missing column %s", col)
		}
		idx[col] = i
	}

	records := make([]Record, 0, len(batch.Rows))
	for n, row := range batch.Rows {
		rec, err := parseRow(batch, row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(batch RawBatch, row []string, idx map[string]int) (Record, error) {
	cell := func(col string) string { return strings.TrimSpace(batch.Value(row, idx[col])) }

	rec := Record{
		ActivityID:   cell(ColumnActivityID),
		ActivityType: cell(ColumnActivityType),
	}
	if rec.ActivityID == "" {
		return Record{}, fmt.Errorf("empty %s", ColumnActivityID)
	}

	date, ok := parseDate(cell(ColumnDate))
	if !ok {
		return Record{}, fmt.Errorf("invalid %s %q", ColumnDate, cell(ColumnDate))
	}
	rec.Date = date

	duration, ok := parseNumber(cell(ColumnDuration))
	if !ok || duration < 0 || duration != math.Trunc(duration) || duration > maxDurationSeconds {
		return Record{}, fmt.Errorf("invalid %s %q", ColumnDuration, cell(ColumnDuration))
	}
	rec.DurationSeconds = int64(duration)

	distance, ok := parseNumber(cell(ColumnDistance))
	if !ok || distance < 0 {
		return Record{}, fmt.Errorf("invalid %s %q", ColumnDistance, cell(ColumnDistance))
	}
	rec.DistanceMeters = distance

	avg, ok := parseNumber(cell(ColumnAvgHeartRate))
	if !ok || math.Abs(avg) > maxHeartRateValue {
		return Record{}, fmt.Errorf("invalid %s %q", ColumnAvgHeartRate, cell(ColumnAvgHeartRate))
	}
	rec.AvgHeartRate = int(math.Round(avg))

	maxHR, ok := parseNumber(cell(ColumnMaxHeartRate))
	if !ok || math.Abs(maxHR) > maxHeartRateValue {
		return Record{}, fmt.Errorf("invalid %s %q", ColumnMaxHeartRate, cell(ColumnMaxHeartRate))
	}
	rec.MaxHeartRate = int(math.Round(maxHR))

	return rec, nil
}

// RawBatchFromObjects builds a RawBatch from JSON objects keyed by column
// name, as submitted over HTTP or Kafka. The header is the union of all keys:
// known columns first in canonical order, then any unknown keys sorted so the
// Validator can name them.
func RawBatchFromObjects(objects []map[string]json.RawMessage) (RawBatch, error) {
	keys := make(map[string]struct{})
	for _, obj := range objects {
		for k := range obj {
			keys[k] = struct{}{}
		}
	}

	var columns, extra []string
	for _, col := range Columns {
		if _, ok := keys[col]; ok {
			columns = append(columns, col)
		}
	}
	for k := range keys {
		if !isKnownColumn(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	columns = append(columns, extra...)

	batch := RawBatch{Columns: columns, Rows: make([][]string, 0, len(objects))}
	for n, obj := range objects {
		row := make([]string, len(columns))
		for i, col := range columns {
			v, ok := obj[col]
			if !ok {
				continue
			}
			s, err := jsonScalar(v)
			if err != nil {
				return RawBatch{}, fmt.Errorf("record %d field %s: %w", n+1, col, err)
			}
			row[i] = s
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// jsonScalar renders a JSON scalar in the string form a CSV cell would carry.
func jsonScalar(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar value")
	default:
		return string(trimmed), nil
	}
}
