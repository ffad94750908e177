package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/retry"
)

type staticTokens struct{}

func (staticTokens) Current(context.Context) (string, error) { return "snap-token", nil }

func (staticTokens) Invalidate() {}

func testRetry() retry.Config {
	return retry.Config{
		Policy:      retry.NewPolicy(time.Millisecond, 5*time.Millisecond, 2.0, 0),
		MaxAttempts: 2,
	}
}

func newTestClient(t *testing.T, url string, threshold uint32) *Client {
	t.Helper()
	return NewClient(Config{
		URL:              url,
		Timeout:          time.Second,
		BreakerThreshold: threshold,
		BreakerCooldown:  time.Minute,
		Retry:            testRetry(),
	}, staticTokens{}, zap.NewNop(), observability.NewCollector("snapshottest"))
}

func TestFetchSnapshot_DecodesVaultList(t *testing.T) {
	var authHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshotResponse{Vaults: []entities.Snapshot{
			{ID: "vault-1", Version: 3, Name: "Audit Pack", Status: "active"},
			{ID: "vault-2", Version: 1, Name: "Q3 Board Pack", Status: "pending"},
		}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	snaps, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.Equal(t, "vault-1", snaps[0].ID)
	assert.Equal(t, int64(3), snaps[0].Version)
	assert.Equal(t, "Bearer snap-token", authHeader.Load())
}

func TestFetchSnapshot_RetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(snapshotResponse{Vaults: []entities.Snapshot{
			{ID: "vault-1", Version: 1, Name: "Audit Pack", Status: "active"},
		}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	snaps, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.Len(t, snaps, 1)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchSnapshot_UnauthorizedIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.FetchSnapshot(context.Background())

	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetchSnapshot_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	ctx := context.Background()

	_, err := client.FetchSnapshot(ctx)
	require.Error(t, err)
	_, err = client.FetchSnapshot(ctx)
	require.Error(t, err)
	before := requests.Load()

	// The third call is rejected by the breaker without reaching the server.
	_, err = client.FetchSnapshot(ctx)
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.Equal(t, before, requests.Load())
}
