package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trip-planner/internal/database"
	"trip-planner/internal/planner"
	"trip-planner/internal/queue"
	"trip-planner/internal/routing"
)

// Version is reported by the health endpoint
var Version = "dev"

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB      database.DataStore
	Planner *planner.Service
	Queue   queue.Broker
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handleServiceError maps planner, routing and queue errors to responses
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var (
		validation *planner.ValidationError
		notFound   *planner.NotFoundError
		noPath     *routing.ErrNoPathFound
		invalidRef *routing.ErrInvalidNodeReference
		invalidEdg *routing.ErrInvalidEdge
	)

	switch {
	case errors.As(err, &validation):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid planning request", validation.Problems)
	case errors.As(err, &invalidEdg):
		h.handleValidationError(w, invalidEdg.Error())
	case errors.Is(err, routing.ErrTooFewStops):
		h.handleValidationError(w, err.Error())
	case errors.As(err, &noPath):
		details := map[string]interface{}{"from": noPath.From, "to": noPath.To}
		if noPath.Segment > 0 {
			details["segment"] = noPath.Segment
		}
		h.writeError(w, http.StatusUnprocessableEntity, "NO_PATH_FOUND", noPath.Error(), details)
	case errors.As(err, &invalidRef):
		h.writeError(w, http.StatusUnprocessableEntity, "INVALID_NODE_REFERENCE", invalidRef.Error(), map[string]string{"id": invalidRef.ID})
	case errors.As(err, &notFound):
		h.handleNotFound(w, notFound.Error())
	case h.checkNotFound(err):
		h.handleNotFound(w, "Resource not found")
	case errors.Is(err, planner.ErrNoPlaces):
		h.writeError(w, http.StatusUnprocessableEntity, "NO_PLACES", err.Error(), nil)
	case errors.Is(err, queue.ErrQueueUnavailable):
		log.Printf("[ERROR] Queue unavailable: %v", err)
		h.writeError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Planning queue is unavailable. Please try again later.", nil)
	default:
		h.handleInternalError(w, err)
	}
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// decodeJSON decodes the request body, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"
	queueStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}
	if h.Queue == nil {
		queueStatus = "disabled"
	} else if err := h.Queue.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		queueStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
		"queue":    queueStatus,
	})
}
