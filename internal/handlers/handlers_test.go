package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/itinerary"
	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
	"trip-planner/internal/planner"
	"trip-planner/internal/queue"
	"trip-planner/internal/routing"
	"trip-planner/internal/testutil"
)

type testEnv struct {
	handler *Handler
	broker  *queue.Memory
	engine  *routing.Engine
}

func setupTestHandler(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewStore(t)
	testutil.SeedPlaces(t, store, testutil.PlaceLine("A", "B", "C")...)

	m := metrics.New()
	engine := routing.NewEngine(store.Edges(), routing.NewEntityResolver(store), m)
	pipeline := &planner.Pipeline{
		Places:    store.Places(),
		Router:    engine,
		Enricher:  itinerary.NewEnricher(store.Hotels(), store.Events(), itinerary.NewRandom(1)),
		Assembler: itinerary.NewAssembler(0),
	}

	broker := queue.NewMemory()
	t.Cleanup(func() { broker.Close() })

	return &testEnv{
		handler: &Handler{
			DB:      store,
			Planner: planner.NewService(store.History(), pipeline, engine, broker, m),
			Queue:   broker,
		},
		broker: broker,
		engine: engine,
	}
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleHealthCheck(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["queue"])

	require.NoError(t, env.broker.Close())
	w = httptest.NewRecorder()
	env.handler.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["queue"])
}

func TestHandlePlanSync(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandlePlanSync(w, jsonRequest(t, "POST", "/api/v1/plan", map[string]interface{}{
		"fromPlace":  "A",
		"toPlace":    "C",
		"waypoints":  []string{"B"},
		"daysOfTrip": 2,
	}))

	require.Equal(t, http.StatusOK, w.Code)
	var response PlanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Days, 2)
	assert.Equal(t, 1, response.Days[0].Day)
	assert.Equal(t, 3, response.Days[0].Agenda.Filled())
	assert.Nil(t, response.Days[1].Agenda.Morning)
}

func TestHandlePlanSync_ValidationError(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandlePlanSync(w, jsonRequest(t, "POST", "/api/v1/plan", map[string]interface{}{
		"toPlace":    "C",
		"daysOfTrip": 1,
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", response.Error.Code)
	assert.Contains(t, response.Error.Details, "fromPlace is required")
}

func TestHandlePlanSync_InvalidJSON(t *testing.T) {
	env := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/plan", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	env.handler.HandlePlanSync(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
}

func TestHandlePlanSync_UnknownPlace(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandlePlanSync(w, jsonRequest(t, "POST", "/api/v1/plan", map[string]interface{}{
		"fromPlace": "A", "toPlace": "Z", "daysOfTrip": 1,
	}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestHandlePlanAsyncAndPoll(t *testing.T) {
	env := setupTestHandler(t)

	req := jsonRequest(t, "POST", "/api/v1/plan/async", map[string]interface{}{
		"fromPlace": "A", "toPlace": "B", "daysOfTrip": 1,
	})
	req.Header.Set(RequesterHeader, "u1")
	w := httptest.NewRecorder()
	env.handler.HandlePlanAsync(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var queued EnqueueResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&queued))
	assert.NotEmpty(t, queued.RequestID)
	assert.Equal(t, models.PlanStatusPending, queued.Status)

	w = httptest.NewRecorder()
	env.handler.HandleGetPlan(w, httptest.NewRequest("GET", "/api/v1/plan/"+queued.RequestID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var result models.PlanningResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "u1", result.RequesterID)
	assert.Equal(t, models.PlanStatusPending, result.Status)

	histReq := httptest.NewRequest("GET", "/api/v1/plan/history?page=1&limit=5", nil)
	histReq.Header.Set(RequesterHeader, "u1")
	w = httptest.NewRecorder()
	env.handler.HandlePlanHistory(w, histReq)
	require.Equal(t, http.StatusOK, w.Code)
	var history HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
	assert.Equal(t, HistoryMeta{Page: 1, Limit: 5, Total: 1}, history.Meta)
	require.Len(t, history.Plans, 1)
	assert.Equal(t, queued.RequestID, history.Plans[0].RequestID)
}

func TestHandlePlanAsync_QueueUnavailable(t *testing.T) {
	env := setupTestHandler(t)
	require.NoError(t, env.broker.Close())

	w := httptest.NewRecorder()
	env.handler.HandlePlanAsync(w, jsonRequest(t, "POST", "/api/v1/plan/async", map[string]interface{}{
		"fromPlace": "A", "toPlace": "B", "daysOfTrip": 1,
	}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "QUEUE_UNAVAILABLE", decodeError(t, w).Error.Code)
}

func TestHandleGetPlan_NotFound(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandleGetPlan(w, httptest.NewRequest("GET", "/api/v1/plan/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePlanHistory_RequiresRequester(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandlePlanHistory(w, httptest.NewRequest("GET", "/api/v1/plan/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/plan/history?limit=500", nil)
	req.Header.Set(RequesterHeader, "u1")
	w = httptest.NewRecorder()
	env.handler.HandlePlanHistory(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePlanHistory_EmptyPage(t *testing.T) {
	env := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/plan/history", nil)
	req.Header.Set(RequesterHeader, "nobody")
	w := httptest.NewRecorder()
	env.handler.HandlePlanHistory(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"plans":[],"meta":{"page":1,"limit":10,"total":0}}`, w.Body.String())
}

func TestHandlePaths_Lifecycle(t *testing.T) {
	env := setupTestHandler(t)

	w := httptest.NewRecorder()
	env.handler.HandleUpsertPath(w, jsonRequest(t, "POST", "/api/v1/paths", map[string]interface{}{
		"fromPlaceId": "A", "toPlaceId": "B", "mode": "car", "distance": 4.5, "direction": "from", "roadId": "r-1",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	var snap routing.EdgeSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "r-1", snap.Edges[0].RoadRef)

	w = httptest.NewRecorder()
	env.handler.HandleUpsertPath(w, jsonRequest(t, "PUT", "/api/v1/paths", map[string]interface{}{
		"fromPlaceId": "A", "toPlaceId": "B", "mode": "car", "distance": 3.0, "direction": "from",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	env.handler.HandleRoute(w, jsonRequest(t, "POST", "/api/v1/paths/route", RouteRequest{FromPlaceID: "A", ToPlaceID: "B"}))
	require.Equal(t, http.StatusOK, w.Code)
	var route models.WaypointRoute
	require.NoError(t, json.NewDecoder(w.Body).Decode(&route))
	assert.Equal(t, 3.0, route.TotalDistance)
	assert.Equal(t, []string{"A", "B"}, route.Places)

	w = httptest.NewRecorder()
	env.handler.HandleDeletePath(w, jsonRequest(t, "DELETE", "/api/v1/paths", DeletePathRequest{FromPlaceID: "A", ToPlaceID: "B"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())

	w = httptest.NewRecorder()
	env.handler.HandleDeletePath(w, jsonRequest(t, "DELETE", "/api/v1/paths", DeletePathRequest{FromPlaceID: "A", ToPlaceID: "B"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleUpsertPath_Errors(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"missing ids", map[string]interface{}{"fromPlaceId": "A", "distance": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing distance", map[string]interface{}{"fromPlaceId": "A", "toPlaceId": "B"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative distance", map[string]interface{}{"fromPlaceId": "A", "toPlaceId": "B", "distance": -1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad direction", map[string]interface{}{"fromPlaceId": "A", "toPlaceId": "B", "distance": 1, "direction": "sideways"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown node", map[string]interface{}{"fromPlaceId": "A", "toPlaceId": "ghost", "distance": 1}, http.StatusUnprocessableEntity, "INVALID_NODE_REFERENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.handler.HandleUpsertPath(w, jsonRequest(t, "POST", "/api/v1/paths", tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestHandleRoute_NoPath(t *testing.T) {
	env := setupTestHandler(t)
	_, err := env.engine.UpsertEdge(context.Background(), routing.EdgeInput{From: "A", To: "B", Distance: 1})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	env.handler.HandleRoute(w, jsonRequest(t, "POST", "/api/v1/paths/route", RouteRequest{
		FromPlaceID: "A", ToPlaceID: "C", Waypoints: []string{"B"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	response := decodeError(t, w)
	assert.Equal(t, "NO_PATH_FOUND", response.Error.Code)
	details, ok := response.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "B", details["from"])
	assert.Equal(t, "C", details["to"])
	assert.Equal(t, float64(2), details["segment"])
}
