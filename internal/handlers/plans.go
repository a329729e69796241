package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"trip-planner/internal/models"
)

// RequesterHeader identifies the caller for async and history requests
const RequesterHeader = "X-Requester-ID"

// PlanResponse is returned by synchronous planning
type PlanResponse struct {
	Days []models.DayPlan `json:"days"`
}

// EnqueueResponse is returned when a request is queued
type EnqueueResponse struct {
	RequestID string            `json:"requestId"`
	Status    models.PlanStatus `json:"status"`
}

// HistoryMeta describes a page of history
type HistoryMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// HistoryResponse is a page of a requester's plans
type HistoryResponse struct {
	Plans []models.PlanningResult `json:"plans"`
	Meta  HistoryMeta             `json:"meta"`
}

func requesterFrom(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	return strings.TrimSpace(r.Header.Get(RequesterHeader))
}

// HandlePlanSync handles POST /api/v1/plan
func (h *Handler) HandlePlanSync(w http.ResponseWriter, r *http.Request) {
	var req models.PlanningRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/plan: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	req.RequesterID = requesterFrom(r, req.RequesterID)

	log.Printf("[HTTP] POST /api/v1/plan: from=%s to=%s waypoints=%d days=%d", req.FromPlace, req.ToPlace, len(req.Waypoints), req.DaysOfTrip)

	days, err := h.Planner.PlanSync(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PlanResponse{Days: days})
}

// HandlePlanAsync handles POST /api/v1/plan/async
func (h *Handler) HandlePlanAsync(w http.ResponseWriter, r *http.Request) {
	var req models.PlanningRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/plan/async: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	req.RequesterID = requesterFrom(r, req.RequesterID)

	res, err := h.Planner.Enqueue(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/plan/async: queued request=%s requester=%s", res.RequestID, res.RequesterID)
	h.writeJSON(w, http.StatusAccepted, EnqueueResponse{RequestID: res.RequestID, Status: res.Status})
}

// HandleGetPlan handles GET /api/v1/plan/{requestId}
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimPrefix(r.URL.Path, "/api/v1/plan/")
	if requestID == "" || strings.Contains(requestID, "/") {
		h.handleValidationError(w, "Invalid request ID")
		return
	}

	res, err := h.Planner.Get(r.Context(), requestID)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Plan not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// HandlePlanHistory handles GET /api/v1/plan/history
func (h *Handler) HandlePlanHistory(w http.ResponseWriter, r *http.Request) {
	requesterID := strings.TrimSpace(r.Header.Get(RequesterHeader))
	if requesterID == "" {
		requesterID = strings.TrimSpace(r.URL.Query().Get("requesterId"))
	}
	if requesterID == "" {
		h.handleValidationError(w, "Requester ID is required")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		h.handleValidationError(w, "limit must be between 1 and 100")
		return
	}

	plans, total, err := h.Planner.ListHistory(r.Context(), requesterID, page, limit)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	if plans == nil {
		plans = []models.PlanningResult{}
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		Plans: plans,
		Meta:  HistoryMeta{Page: page, Limit: limit, Total: total},
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
