// Package api exposes HTTP handlers for the activity store.
package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/activitystore/internal/auth"
	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/store"
)

const (
	activitiesPrefix = "/v1/activities/"
	monthLayout      = "200601"
	maxBodyBytes     = 8 << 20
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(activitiesPrefix, h.activities)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	activityType := strings.Trim(strings.TrimPrefix(r.URL.Path, activitiesPrefix), "/")
	if activityType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity type")
		return
	}
	if err := store.ValidatePathComponent("activity type", activityType); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.submitBatch(w, r, activityType)
	case http.MethodGet:
		h.getPartition(w, r, activityType)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request, activityType string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:write required")
		return
	}
	if err := store.ValidatePathComponent("user id", claims.Subject); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	batch, err := decodeBatch(w, r, maxBodyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.service.SubmitBatch(r.Context(), domain.SubmitBatchInput{
		UserID:       claims.Subject,
		ActivityType: activityType,
		Batch:        batch,
		Source:       "api",
	})
	resp := toSubmitResponse(result)
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domain.ErrNotPersisted):
		writeError(w, http.StatusInternalServerError, "server_error", "activity batch was not persisted")
	case err != nil:
		h.logger.Error("submit batch failed", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	default:
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (h *Handler) getPartition(w http.ResponseWriter, r *http.Request, activityType string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.CanRead() {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	month := h.now().UTC()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse(monthLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "month must be formatted YYYYMM")
			return
		}
		month = parsed
	}

	records, err := h.service.GetPartition(r.Context(), claims.Subject, activityType, month)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPathComponent) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("load partition failed", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := PartitionResponse{
		ActivityType: activityType,
		Month:        month.Format(monthLayout),
		Items:        make([]RecordView, 0, len(records)),
	}
	for _, rec := range records {
		resp.Items = append(resp.Items, toRecordView(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBatch reads a batch from either a CSV body or a JSON body of the
// form {"records": [{column: value}, ...]}.
func decodeBatch(w http.ResponseWriter, r *http.Request, limit int64) (domain.RawBatch, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		batch, err := store.DecodeRaw(body)
		if err != nil {
			return domain.RawBatch{}, errors.New("unable to parse csv body")
		}
		return batch, nil
	}

	var req SubmitBatchRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return domain.RawBatch{}, errors.New("unable to parse body")
	}
	if req.Records == nil {
		return domain.RawBatch{}, errors.New("records is required")
	}
	return domain.RawBatchFromObjects(req.Records)
}

// SubmitBatchRequest is the JSON payload for POST /v1/activities/{type}.
type SubmitBatchRequest struct {
	Records []map[string]json.RawMessage `json:"records"`
}

// SubmitBatchResponse carries the validation report of a submitted batch.
type SubmitBatchResponse struct {
	BatchID  string   `json:"batch_id"`
	Stored   int      `json:"stored"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RecordView exposes a stored activity row.
type RecordView struct {
	ActivityID   string  `json:"activity_id"`
	Date         string  `json:"date"`
	ActivityType string  `json:"activity_type"`
	Duration     int64   `json:"duration"`
	Distance     float64 `json:"distance"`
	AvgHeartRate int     `json:"avg_heart_rate"`
	MaxHeartRate int     `json:"max_heart_rate"`
}

// PartitionResponse packages the rows of one monthly partition.
type PartitionResponse struct {
	ActivityType string       `json:"activity_type"`
	Month        string       `json:"month"`
	Items        []RecordView `json:"items"`
}

func toSubmitResponse(result *domain.SubmitBatchResult) SubmitBatchResponse {
	resp := SubmitBatchResponse{Errors: []string{}, Warnings: []string{}}
	if result == nil {
		return resp
	}
	resp.BatchID = result.BatchID
	resp.Stored = result.Stored
	if result.Report.Errors != nil {
		resp.Errors = result.Report.Errors
	}
	if result.Report.Warnings != nil {
		resp.Warnings = result.Report.Warnings
	}
	return resp
}

func toRecordView(rec domain.Record) RecordView {
	return RecordView{
		ActivityID:   rec.ActivityID,
		Date:         rec.Date.Format(domain.DateLayout),
		ActivityType: rec.ActivityType,
		Duration:     rec.DurationSeconds,
		Distance:     rec.DistanceMeters,
		AvgHeartRate: rec.AvgHeartRate,
		MaxHeartRate: rec.MaxHeartRate,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
