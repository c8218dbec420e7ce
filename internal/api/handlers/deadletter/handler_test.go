package deadletter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetrovmax/notify-dispatcher/internal/api/dto"
	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	mocks "github.com/vetrovmax/notify-dispatcher/internal/mocks/api/handlers/deadletter"
)

func setupHandler(t *testing.T) (*Handler, *mocks.MockdeadLetterManager) {
	ctrl := gomock.NewController(t)
	mockManager := mocks.NewMockdeadLetterManager(ctrl)
	handler := NewHandler(mockManager)
	return handler, mockManager
}

func TestHandler_Peek(t *testing.T) {
	handler, mockManager := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/dlq/email-sub", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "subscription", Value: "email-sub"}}

	mockManager.EXPECT().
		Peek(gomock.Any(), "email-sub", batchSize).
		Return([]bus.DeadLetter{
			{
				Message:          bus.Message{ID: "m1", Body: []byte(`{"hello":"world"}`)},
				DeliveryCount:    3,
				Reason:           bus.ReasonMaxDeliveries,
				ErrorDescription: "message was not settled after 3 delivery attempts",
			},
		})

	handler.Peek(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var entries []dto.DeadLetterEntry
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "m1", entries[0].MessageID)
	assert.Equal(t, `{"hello":"world"}`, entries[0].Body)
	assert.Equal(t, bus.ReasonMaxDeliveries, entries[0].Reason)
	assert.Equal(t, 3, entries[0].DeliveryCount)
}

func TestHandler_Peek_Empty(t *testing.T) {
	handler, mockManager := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/dlq/sms-sub", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "subscription", Value: "sms-sub"}}

	mockManager.EXPECT().Peek(gomock.Any(), "sms-sub", batchSize).Return(nil)

	handler.Peek(c)

	// Peek never fails outward: a broken transport reads as an empty queue.
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var entries []dto.DeadLetterEntry
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&entries))
	assert.Empty(t, entries)
}

func TestHandler_Replay(t *testing.T) {
	handler, mockManager := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/dlq/replay/email-sub", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "subscription", Value: "email-sub"}}

	mockManager.EXPECT().Replay(gomock.Any(), "email-sub", batchSize).Return(4, nil)

	handler.Replay(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp dto.ReplayResponse
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&resp))
	assert.Equal(t, 4, resp.ReplayedCount)
}

func TestHandler_Replay_Error(t *testing.T) {
	handler, mockManager := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/dlq/replay/email-sub", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "subscription", Value: "email-sub"}}

	mockManager.EXPECT().
		Replay(gomock.Any(), "email-sub", batchSize).
		Return(1, errors.New("republish dead letter m2: broker unavailable"))

	handler.Replay(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
