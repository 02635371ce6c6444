package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoapp/service-presence/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(context.Background(), Options{
		BaseURL:             server.URL,
		Timeout:             2 * time.Second,
		BreakerMaxFailures:  3,
		BreakerResetTimeout: time.Minute,
	})
}

func TestClient_GetByID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/user1", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user1","name":"Asha","email":"asha@example.com","avatarUrl":"https://cdn.example.com/a.png"}`))
	})

	got, err := client.GetByID(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, "user1", got.ID)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "asha@example.com", got.Email)
	assert.Equal(t, "https://cdn.example.com/a.png", got.AvatarURL)
}

func TestClient_GetByID_FillsMissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Asha"}`))
	})

	got, err := client.GetByID(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, "user1", got.ID)
}

func TestClient_GetByID_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestClient_GetByID_EmptyID(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for an empty ID")
	})

	_, err := client.GetByID(context.Background(), "")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestClient_GetByID_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetByID(context.Background(), "user1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for range 3 {
		_, err := client.GetByID(ctx, "user1")
		require.Error(t, err)
	}

	// Fourth call fails fast without reaching the server.
	_, err := client.GetByID(ctx, "user1")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int64(3), hits.Load())
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ctx := context.Background()
	for range 10 {
		_, err := client.GetByID(ctx, "ghost")
		// Still the definitive miss every time, never ErrCircuitOpen.
		require.ErrorIs(t, err, ErrProfileNotFound)
	}
}
