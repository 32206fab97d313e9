package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/services/dto"
	"notifyhub_backend/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatchService struct {
	lastRequest *dto.DispatchRequest
	response    *dto.DispatchResponse
	err         error
}

func (s *stubDispatchService) Dispatch(ctx context.Context, req *dto.DispatchRequest) (*dto.DispatchResponse, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubDispatchService) DeliverDeferred(ctx context.Context, notification *models.Notification) error {
	return nil
}

func newDispatchTestRouter(stub *stubDispatchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	base := NewBaseHandler(validator.New())
	handler := NewDispatchHandler(base, stub)
	handler.RegisterRoutes(router.Group("/api/v1"))

	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDispatchEndpoint_Created(t *testing.T) {
	t.Parallel()

	stub := &stubDispatchService{response: &dto.DispatchResponse{
		Success:        true,
		NotificationID: "n-1",
		DeliveryStatus: map[string]string{"in_app": "sent"},
	}}
	router := newDispatchTestRouter(stub)

	rec := postJSON(t, router, "/api/v1/notifications/dispatch", gin.H{
		"user_id":       "user-1",
		"title":         "Низкий остаток",
		"message":       "Товар заканчивается",
		"source_system": "inventory",
		"channels":      []string{"in_app", "email"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stub.lastRequest)
	assert.Equal(t, "user-1", stub.lastRequest.UserID)
	assert.Contains(t, rec.Body.String(), `"notification_id":"n-1"`)
}

func TestDispatchEndpoint_GroupedReturns200(t *testing.T) {
	t.Parallel()

	stub := &stubDispatchService{response: &dto.DispatchResponse{
		Success:        true,
		NotificationID: "n-1",
		Grouped:        true,
		DeliveryStatus: map[string]string{},
	}}
	router := newDispatchTestRouter(stub)

	rec := postJSON(t, router, "/api/v1/notifications/dispatch", gin.H{
		"user_id":       "user-1",
		"title":         "Низкий остаток",
		"message":       "Товар заканчивается",
		"source_system": "inventory",
		"category":      "stock",
	})

	assert.Equal(t, http.StatusOK, rec.Code, "Слияние в группу - не создание нового ресурса")
}

func TestDispatchEndpoint_ValidationFailures(t *testing.T) {
	t.Parallel()

	router := newDispatchTestRouter(&stubDispatchService{})

	cases := []struct {
		name string
		body gin.H
	}{
		{"без user_id", gin.H{"title": "t", "message": "m", "source_system": "inventory"}},
		{"без title", gin.H{"user_id": "u", "message": "m", "source_system": "inventory"}},
		{"неизвестный канал", gin.H{"user_id": "u", "title": "t", "message": "m", "source_system": "inventory", "channels": []string{"pigeon"}}},
		{"приоритет вне диапазона", gin.H{"user_id": "u", "title": "t", "message": "m", "source_system": "inventory", "priority": 9}},
		{"неизвестный тип", gin.H{"user_id": "u", "title": "t", "message": "m", "source_system": "inventory", "type": "broadcast"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := postJSON(t, router, "/api/v1/notifications/dispatch", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
