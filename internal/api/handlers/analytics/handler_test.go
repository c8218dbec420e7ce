package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/vetrovmax/notify-dispatcher/internal/mocks/api/handlers/analytics"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

func setupHandler(t *testing.T) (*Handler, *mocks.MockanalyticsService) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockanalyticsService(ctrl)
	handler := NewHandler(mockService)
	return handler, mockService
}

func TestHandler_Summary(t *testing.T) {
	handler, mockService := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		GetSummary(gomock.Any()).
		Return(model.Summary{Total: 10, Sent: 7, Failed: 1, Pending: 2, AverageProcessingMs: 145.2}, nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var s model.Summary
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&s))
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 145.2, s.AverageProcessingMs)
}

func TestHandler_Summary_Error(t *testing.T) {
	handler, mockService := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().GetSummary(gomock.Any()).Return(model.Summary{}, errors.New("db down"))

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}

func TestHandler_ByChannel(t *testing.T) {
	handler, mockService := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/by-channel", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		GetChannelSummaries(gomock.Any()).
		Return([]model.ChannelSummary{
			{Channel: model.ChannelEmail, Total: 5, Sent: 4, Failed: 1},
			{Channel: model.ChannelPush, Total: 2, Pending: 2},
		}, nil)

	handler.ByChannel(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var summaries []model.ChannelSummary
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, model.ChannelEmail, summaries[0].Channel)
}

func TestHandler_Recent(t *testing.T) {
	handler, mockService := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/recent", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		GetRecentNotifications(gomock.Any(), recentLimit).
		Return([]model.Notification{{ID: uuid.New(), Message: "msg"}}, nil)

	handler.Recent(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var notifications []model.Notification
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&notifications))
	assert.Len(t, notifications, 1)
}

func TestHandler_TenantSummary(t *testing.T) {
	handler, mockService := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary/tenant-a", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "tenantId", Value: "tenant-a"}}

	mockService.EXPECT().
		GetTenantSummary(gomock.Any(), "tenant-a").
		Return(model.TenantSummary{Total: 7, Sent: 5}, nil)

	handler.TenantSummary(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var s model.TenantSummary
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&s))
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 5, s.Sent)
}
