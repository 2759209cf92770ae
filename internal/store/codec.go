package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"example.com/activitystore/internal/domain"
)

// ParseError reports a partition or upload that does not match the fixed
// seven-column schema. Line is 1-based and counts the header; 0 means the
// failure is not tied to a single line.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "input"
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", loc, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", loc, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadPartition reads every record of a partition file. A missing file is an
// empty partition, not an error.
func ReadPartition(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Record{}, nil
		}
		return nil, fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	records, err := DecodeRecords(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return records, nil
}

// DecodeRecords reads a partition stream. The header must name exactly the
// seven schema columns (in any order); each row must have seven cells.
func DecodeRecords(r io.Reader) ([]domain.Record, error) {
	raw, err := DecodeRaw(r)
	if err != nil {
		return nil, err
	}
	if len(raw.Columns) == 0 {
		return []domain.Record{}, nil
	}
	if err := checkHeader(raw.Columns); err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	records, err := domain.ParseBatch(raw)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return records, nil
}

// DecodeRaw reads delimited text into a RawBatch without interpreting the
// cells. Every row must have as many cells as the header.
func DecodeRaw(r io.Reader) (domain.RawBatch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.RawBatch{Rows: [][]string{}}, nil
		}
		return domain.RawBatch{}, csvParseError(err)
	}

	batch := domain.RawBatch{Columns: make([]string, len(header)), Rows: [][]string{}}
	for i, col := range header {
		batch.Columns[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawBatch{}, csvParseError(err)
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// EncodeRecords writes the header followed by one row per record.
func EncodeRecords(w io.Writer, records []domain.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(domain.Columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(encodeRecord(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func encodeRecord(rec domain.Record) []string {
	return []string{
		rec.ActivityID,
		rec.Date.Format(domain.DateLayout),
		rec.ActivityType,
		strconv.FormatInt(rec.DurationSeconds, 10),
		strconv.FormatFloat(rec.DistanceMeters, 'f', -1, 64),
		strconv.Itoa(rec.AvgHeartRate),
		strconv.Itoa(rec.MaxHeartRate),
	}
}

func checkHeader(columns []string) error {
	seen := make(map[string]bool, len(columns))
	var unknown []string
	for _, col := range columns {
		if seen[col] {
			return fmt.Errorf("duplicate column %s", col)
		}
		seen[col] = true
		known := false
		for _, want := range domain.Columns {
			if col == want {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, col)
		}
	}
	var missing []string
	for _, want := range domain.Columns {
		if !seen[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		return fmt.Errorf("header mismatch (missing: [%s], unknown: [%s])", strings.Join(missing, ", "), strings.Join(unknown, ", "))
	}
	return nil
}

func csvParseError(err error) error {
	var cerr *csv.ParseError
	if errors.As(err, &cerr) {
		return &ParseError{Line: cerr.Line, Err: cerr.Err}
	}
	return &ParseError{Err: err}
}
