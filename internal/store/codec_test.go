package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activitystore/internal/domain"
)

func sampleRecord(id string, duration int64) domain.Record {
	return domain.Record{
		ActivityID:      id,
		Date:            time.Date(2024, time.March, 21, 0, 0, 0, 0, time.UTC),
		ActivityType:    "running",
		DurationSeconds: duration,
		DistanceMeters:  10000,
		AvgHeartRate:    150,
		MaxHeartRate:    180,
	}
}

func TestEncodeDecodeRecords(t *testing.T) {
	records := []domain.Record{sampleRecord("a1", 3600), sampleRecord("a2", 1800)}
	records[1].DistanceMeters = 5000.25

	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, records))
	require.True(t, strings.HasPrefix(buf.String(), "activity_id,date,activity_type,duration,distance,avg_heart_rate,max_heart_rate\n"))
	require.Contains(t, buf.String(), "a2,2024-03-21,running,1800,5000.25,150,180\n")

	decoded, err := DecodeRecords(&buf)
	require.NoError(t, err)
	require.Equal(t, records, decoded)
}

func TestDecodeRecordsAcceptsReorderedHeader(t *testing.T) {
	input := "max_heart_rate,avg_heart_rate,distance,duration,activity_type,date,activity_id\n180,150,10000,3600,running,2024-03-21,a1\n"

	records, err := DecodeRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []domain.Record{sampleRecord("a1", 3600)}, records)
}

func TestDecodeRecordsRejectsSchemaMismatch(t *testing.T) {
	input := "activity_id,date,activity_type,duration,distance,avg_heart_rate\na1,2024-03-21,running,3600,10000,150\n"

	_, err := DecodeRecords(strings.NewReader(input))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Line)
	require.ErrorContains(t, err, "missing: [max_heart_rate]")
}

func TestDecodeRecordsRejectsRaggedRows(t *testing.T) {
	input := "activity_id,date,activity_type,duration,distance,avg_heart_rate,max_heart_rate\na1,2024-03-21,running\n"

	_, err := DecodeRecords(strings.NewReader(input))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 2, perr.Line)
}

func TestDecodeRawStripsBOM(t *testing.T) {
	batch, err := DecodeRaw(strings.NewReader("\ufeffactivity_id,date\na1,2024-03-21\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"activity_id", "date"}, batch.Columns)
	require.Equal(t, [][]string{{"a1", "2024-03-21"}}, batch.Rows)
}

func TestReadPartitionMissingFileIsEmpty(t *testing.T) {
	records, err := ReadPartition(filepath.Join(t.TempDir(), "202401.csv"))
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestReadPartitionNamesPathOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "202401.csv")
	require.NoError(t, os.WriteFile(path, []byte("bogus\nrow\n"), 0o600))

	_, err := ReadPartition(path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, path, perr.Path)
}
