package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

func reminder(phone string) port.ReminderMessage {
	return port.ReminderMessage{
		TaskID:       9,
		Tag:          "GST",
		DocumentType: "gstr1",
		DocumentName: "GSTR-1 Return",
		Contact:      entity.ClientContact{Name: "Ravi", Phone: phone},
	}
}

func TestClient_Send(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-77"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Token: "secret", Channel: "whatsapp"}, zap.NewNop())
	receipt, err := c.Send(context.Background(), reminder("+919800000000"))
	require.NoError(t, err)

	assert.Equal(t, entity.ChannelGateway, receipt.Channel)
	assert.Equal(t, "+919800000000", receipt.Recipient)
	assert.Equal(t, "msg-77", receipt.MessageID)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "whatsapp", got.Channel)
	assert.Equal(t, "task-9/GST-gstr1", got.Reference)
	assert.Contains(t, got.Message, "GSTR-1 Return")
}

func TestClient_NoPhone(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:0"}, zap.NewNop())
	_, err := c.Send(context.Background(), reminder(" "))
	assert.ErrorIs(t, err, ErrNoPhone)
	assert.False(t, c.CanReach(entity.ClientContact{}))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, MaxFailures: 2, BreakerReset: time.Minute}, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := c.Send(context.Background(), reminder("+91"))
		require.Error(t, err)
	}

	_, err := c.Send(context.Background(), reminder("+91"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid number", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, MaxFailures: 1}, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := c.Send(context.Background(), reminder("+91"))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}
