// Package domain defines the business logic for the activity store.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrValidationFailed indicates the submitted batch carried validation errors.
	ErrValidationFailed = errors.New("activity batch failed validation")
	// ErrNotPersisted is returned when the store reported a failed write.
	// Nothing is guaranteed about the partition contents; the caller may retry.
	ErrNotPersisted = errors.New("activity batch was not persisted")
)

// ActivityStore captures the persistence operations of the partitioned store.
type ActivityStore interface {
	Save(ctx context.Context, userID, activityType string, records []Record) bool
	Load(ctx context.Context, userID, activityType string, month time.Time) ([]Record, error)
}

// Service orchestrates validation and persistence of activity batches.
type Service struct {
	store  ActivityStore
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(store ActivityStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// SubmitBatchInput captures a batch submitted by an inbound surface.
type SubmitBatchInput struct {
	UserID       string
	ActivityType string
	Batch        RawBatch
	Source       string
}

// SubmitBatchResult describes the outcome of a submission.
type SubmitBatchResult struct {
	BatchID string
	Stored  int
	Report  Report
}

// SubmitBatch validates the batch and, when it carries no errors, merges it
// into the caller's current monthly partition. Warnings do not block the write.
func (s *Service) SubmitBatch(ctx context.Context, input SubmitBatchInput) (*SubmitBatchResult, error) {
	result := &SubmitBatchResult{BatchID: uuid.NewString()}
	logger := s.logger.With(
		zap.String("batch_id", result.BatchID),
		zap.String("user_id", input.UserID),
		zap.String("activity_type", input.ActivityType),
		zap.String("source", input.Source),
	)

	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.ActivityType) == "" {
		result.Report = Report{Errors: []string{"user id and activity type are required"}, Warnings: []string{}}
		return result, ErrValidationFailed
	}
	if !isPathSafe(input.UserID) || !isPathSafe(input.ActivityType) {
		result.Report = Report{Errors: []string{"user id and activity type must be single path components"}, Warnings: []string{}}
		return result, ErrValidationFailed
	}

	result.Report = Validate(input.Batch)
	if !result.Report.Valid() {
		logger.Info("activity batch rejected", zap.Strings("errors", result.Report.Errors))
		return result, ErrValidationFailed
	}
	if len(result.Report.Warnings) > 0 {
		logger.Warn("activity batch accepted with warnings", zap.Strings("warnings", result.Report.Warnings))
	}

	records, err := ParseBatch(input.Batch)
	if err != nil {
		result.Report.Errors = append(result.Report.Errors, err.Error())
		return result, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if !s.store.Save(ctx, input.UserID, input.ActivityType, records) {
		return result, ErrNotPersisted
	}

	result.Stored = len(records)
	logger.Debug("activity batch stored", zap.Int("records", result.Stored))
	return result, nil
}

// GetPartition returns the records stored for the user, type and month.
func (s *Service) GetPartition(ctx context.Context, userID, activityType string, month time.Time) ([]Record, error) {
	return s.store.Load(ctx, userID, activityType, month)
}

func isPathSafe(value string) bool {
	return value != "." && value != ".." && !strings.ContainsAny(value, "/\\\x00")
}
