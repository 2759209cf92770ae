package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validBatch() RawBatch {
	return RawBatch{
		Columns: append([]string(nil), Columns...),
		Rows: [][]string{
			{"a1", "2024-01-05", "run", "3600", "10000", "150", "180"},
			{"a2", "2024-01-06", "run", "1800", "5000.5", "140", "170"},
		},
	}
}

func TestValidateAcceptsWellFormedBatch(t *testing.T) {
	report := Validate(validBatch())

	require.True(t, report.Valid())
	require.Empty(t, report.Errors)
	require.Empty(t, report.Warnings)
}

func TestValidateReportsMissingColumns(t *testing.T) {
	batch := RawBatch{
		Columns: []string{ColumnActivityID, ColumnDate, ColumnActivityType, ColumnDuration, ColumnDistance},
		Rows:    [][]string{{"a1", "2024-01-05", "run", "3600", "10000"}},
	}

	report := Validate(batch)

	require.False(t, report.Valid())
	require.Contains(t, report.Errors, "missing required columns: avg_heart_rate, max_heart_rate")
}

func TestValidateHeartRateOutOfRangeIsWarning(t *testing.T) {
	batch := validBatch()
	batch.Rows[0][5] = "300"

	report := Validate(batch)

	require.True(t, report.Valid())
	require.Equal(t, []string{"avg_heart_rate contains values outside normal range [0, 250]"}, report.Warnings)
}

func TestValidateNegativeHeartRateIsWarning(t *testing.T) {
	batch := validBatch()
	batch.Rows[1][6] = "-1"

	report := Validate(batch)

	require.True(t, report.Valid())
	require.Equal(t, []string{"max_heart_rate contains values outside normal range [0, 250]"}, report.Warnings)
}

func TestValidateNumericColumns(t *testing.T) {
	tests := []struct {
		name   string
		col    int
		value  string
		expect string
	}{
		{name: "non numeric duration", col: 3, value: "abc", expect: "duration contains invalid values"},
		{name: "negative duration", col: 3, value: "-5", expect: "duration contains negative values"},
		{name: "empty distance", col: 4, value: "", expect: "distance contains invalid values"},
		{name: "nan distance", col: 4, value: "NaN", expect: "distance contains invalid values"},
		{name: "non numeric heart rate", col: 5, value: "fast", expect: "avg_heart_rate contains invalid values"},
		{name: "fractional duration", col: 3, value: "3600.7", expect: "duration contains non-integer values"},
		{name: "duration beyond int64", col: 3, value: "1e300", expect: "duration contains values too large to store"},
		{name: "heart rate beyond int", col: 5, value: "1e30", expect: "avg_heart_rate contains values too large to store"},
		{name: "negative heart rate beyond int", col: 6, value: "-1e30", expect: "max_heart_rate contains values too large to store"},
		{name: "bad date", col: 1, value: "not-a-date", expect: "date contains invalid values"},
		{name: "empty id", col: 0, value: " ", expect: "activity_id contains empty values"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			batch := validBatch()
			batch.Rows[0][tc.col] = tc.value

			report := Validate(batch)

			require.False(t, report.Valid())
			require.Contains(t, report.Errors, tc.expect)
		})
	}
}

func TestValidateRejectsUnknownColumns(t *testing.T) {
	batch := validBatch()
	batch.Columns = append(batch.Columns, "cadence")
	for i := range batch.Rows {
		batch.Rows[i] = append(batch.Rows[i], "90")
	}

	report := Validate(batch)

	require.Equal(t, []string{"unknown columns: cadence"}, report.Errors)
}

func TestValidateWarnsOnDuplicateIDs(t *testing.T) {
	batch := validBatch()
	batch.Rows[1][0] = "a1"

	report := Validate(batch)

	require.True(t, report.Valid())
	require.Equal(t, []string{"activity_id contains duplicates; the last occurrence wins"}, report.Warnings)
}

func TestValidateAcceptsColumnsInAnyOrder(t *testing.T) {
	batch := RawBatch{
		Columns: []string{ColumnMaxHeartRate, ColumnActivityID, ColumnAvgHeartRate, ColumnDate, ColumnDistance, ColumnDuration, ColumnActivityType},
		Rows:    [][]string{{"180", "a1", "150", "2024-01-05", "10000", "3600", "run"}},
	}

	require.True(t, Validate(batch).Valid())
}

func TestValidateDoesNotMutateBatch(t *testing.T) {
	batch := validBatch()
	batch.Rows[0][3] = " 3600 "

	_ = Validate(batch)

	require.Equal(t, " 3600 ", batch.Rows[0][3])
}

func TestValidateEmptyBatchIsValid(t *testing.T) {
	report := Validate(RawBatch{Columns: Columns})

	require.True(t, report.Valid())
	require.Empty(t, report.Warnings)
}

func TestValidateHugeHeartRateIsNotOnlyAWarning(t *testing.T) {
	batch := validBatch()
	batch.Rows[0][3] = "1e300"
	batch.Rows[0][5] = "1e30"

	report := Validate(batch)

	require.False(t, report.Valid())
	require.Empty(t, report.Warnings)
	require.Equal(t, []string{
		"duration contains values too large to store",
		"avg_heart_rate contains values too large to store",
	}, report.Errors)
}

func TestValidateAcceptsIntegralDecimalDuration(t *testing.T) {
	batch := validBatch()
	batch.Rows[0][3] = "3600.0"

	require.True(t, Validate(batch).Valid())
}
