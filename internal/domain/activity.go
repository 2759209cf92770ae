package domain

import "time"

// Column names of the activity partition schema, in canonical order.
const (
	ColumnActivityID   = "activity_id"
	ColumnDate         = "date"
	ColumnActivityType = "activity_type"
	ColumnDuration     = "duration"
	ColumnDistance     = "distance"
	ColumnAvgHeartRate = "avg_heart_rate"
	ColumnMaxHeartRate = "max_heart_rate"
)

// DateLayout is the canonical on-disk form of Record.Date.
const DateLayout = "2006-01-02"

// Columns lists the seven required columns in the order they are written.
var Columns = []string{
	ColumnActivityID,
	ColumnDate,
	ColumnActivityType,
	ColumnDuration,
	ColumnDistance,
	ColumnAvgHeartRate,
	ColumnMaxHeartRate,
}

// Record is a single activity row as stored in a monthly partition.
type Record struct {
	ActivityID      string
	Date            time.Time
	ActivityType    string
	DurationSeconds int64
	DistanceMeters  float64
	AvgHeartRate    int
	MaxHeartRate    int
}

// RawBatch is a batch of activity rows as received from a caller, before any
// type coercion. Cells are addressed by column name.
type RawBatch struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of name in the batch header, or -1.
func (b RawBatch) ColumnIndex(name string) int {
	for i, col := range b.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Value returns the cell for column idx of row, or "" when the row is short.
func (b RawBatch) Value(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Len reports the number of data rows.
func (b RawBatch) Len() int {
	return len(b.Rows)
}

// Report is the advisory outcome of validating a RawBatch.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the batch may be written.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}
