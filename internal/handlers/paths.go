package handlers

import (
	"log"
	"net/http"
	"strings"

	"trip-planner/internal/models"
	"trip-planner/internal/routing"
)

// PathRequest creates or updates a path between two entities
type PathRequest struct {
	FromPlaceID string           `json:"fromPlaceId"`
	ToPlaceID   string           `json:"toPlaceId"`
	Mode        string           `json:"mode"`
	Distance    *float64         `json:"distance"`
	Direction   models.Direction `json:"direction"`
	RoadID      string           `json:"roadId"`
}

// DeletePathRequest removes a directed path
type DeletePathRequest struct {
	FromPlaceID string `json:"fromPlaceId"`
	ToPlaceID   string `json:"toPlaceId"`
}

// RouteRequest asks for the shortest route through optional waypoints
type RouteRequest struct {
	FromPlaceID string   `json:"fromPlaceId"`
	ToPlaceID   string   `json:"toPlaceId"`
	Waypoints   []string `json:"waypoints"`
}

// HandleUpsertPath handles POST and PUT /api/v1/paths
func (h *Handler) HandleUpsertPath(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("[HTTP] %s /api/v1/paths: invalid_json err=%v", r.Method, err)
		h.handleValidationError(w, "Invalid request body")
		return
	}

	req.FromPlaceID = strings.TrimSpace(req.FromPlaceID)
	req.ToPlaceID = strings.TrimSpace(req.ToPlaceID)
	if req.FromPlaceID == "" || req.ToPlaceID == "" {
		h.handleValidationError(w, "fromPlaceId and toPlaceId are required")
		return
	}
	if req.Distance == nil {
		h.handleValidationError(w, "distance is required")
		return
	}

	log.Printf("[HTTP] %s /api/v1/paths: from=%s to=%s distance=%.3f direction=%s", r.Method, req.FromPlaceID, req.ToPlaceID, *req.Distance, req.Direction)

	snap, err := h.Planner.UpsertEdge(r.Context(), routing.EdgeInput{
		From:      req.FromPlaceID,
		To:        req.ToPlaceID,
		Mode:      req.Mode,
		Distance:  *req.Distance,
		RoadRef:   req.RoadID,
		Direction: req.Direction,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, snap)
}

// HandleDeletePath handles DELETE /api/v1/paths
func (h *Handler) HandleDeletePath(w http.ResponseWriter, r *http.Request) {
	var req DeletePathRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("[HTTP] DELETE /api/v1/paths: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.FromPlaceID == "" || req.ToPlaceID == "" {
		h.handleValidationError(w, "fromPlaceId and toPlaceId are required")
		return
	}

	removed, err := h.Planner.DeleteEdge(r.Context(), req.FromPlaceID, req.ToPlaceID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if removed == 0 {
		h.handleNotFound(w, "Path not found")
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/paths: from=%s to=%s removed=%d", req.FromPlaceID, req.ToPlaceID, removed)
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// HandleRoute handles POST /api/v1/paths/route
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/paths/route: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.FromPlaceID == "" || req.ToPlaceID == "" {
		h.handleValidationError(w, "fromPlaceId and toPlaceId are required")
		return
	}

	route, err := h.Planner.Route(r.Context(), req.FromPlaceID, req.ToPlaceID, req.Waypoints)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/paths/route: from=%s to=%s distance=%.3f segments=%d", req.FromPlaceID, req.ToPlaceID, route.TotalDistance, len(route.Segments))
	h.writeJSON(w, http.StatusOK, route)
}
