package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHTTPEmitterRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPEmitter(HTTPEmitterConfig{})
	assert.Error(t, err)
}

func TestEmitDeliversEvent(t *testing.T) {
	var gotMethod, gotContentType, gotAuth string
	var gotEvent Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	emitter, err := NewHTTPEmitter(HTTPEmitterConfig{
		Endpoint:   server.URL,
		Key:        "capture_key",
		HTTPClient: server.Client(),
		Clock:      func() time.Time { return now },
	})
	require.NoError(t, err)

	emitter.Emit(context.Background(), "checkout.session.created", map[string]any{"orderId": float64(42)})

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer capture_key", gotAuth)
	assert.NotEmpty(t, gotEvent.ID)
	assert.Equal(t, "checkout.session.created", gotEvent.Name)
	assert.Equal(t, map[string]any{"orderId": float64(42)}, gotEvent.Properties)
	assert.Equal(t, now, gotEvent.Timestamp)
}

func TestEmitLogsRejectionWithoutPropagating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	core, logs := observer.New(zap.WarnLevel)
	emitter, err := NewHTTPEmitter(HTTPEmitterConfig{
		Endpoint:   server.URL,
		HTTPClient: server.Client(),
		Logger:     zap.New(core),
	})
	require.NoError(t, err)

	emitter.Emit(context.Background(), "checkout.abandoned", nil)

	entries := logs.FilterMessage("analytics endpoint rejected event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestEmitLogsNetworkFailureWithoutPropagating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := server.Client()
	server.Close()

	core, logs := observer.New(zap.WarnLevel)
	emitter, err := NewHTTPEmitter(HTTPEmitterConfig{
		Endpoint:   server.URL,
		HTTPClient: client,
		Logger:     zap.New(core),
	})
	require.NoError(t, err)

	emitter.Emit(context.Background(), "checkout.submitted", map[string]any{"orderId": float64(7)})

	require.Len(t, logs.FilterMessage("analytics delivery failed").All(), 1)
}

func TestNoopEmitterDiscards(t *testing.T) {
	NoopEmitter{}.Emit(context.Background(), "anything", map[string]any{"k": "v"})
}
