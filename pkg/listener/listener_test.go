package listener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestWaitForFieldReturnsFirstEvent(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotKey = r.URL.Path, r.URL.RawQuery, r.Header.Get(apiKeyHeader)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, `data: {"wallet_id":"w1","topic":"credentials","origin":"tenant","payload":{"credential_exchange_id":"v2-1","state":"done"}}`+"\n\n")
	})

	l := New(srv.URL+"/", "w1", "credentials", WithAPIKey("k"), WithLookback(1500*time.Millisecond))
	ev, err := l.WaitForField(context.Background(), "credential_exchange_id", "v2-1", "done", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "/sse/w1/credentials/credential_exchange_id/v2-1/done", gotPath)
	assert.Equal(t, "lookback_time=1.5", gotQuery)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "w1", ev.WalletID)
	assert.Equal(t, "done", ev.State())
	assert.Equal(t, "v2-1", ev.Payload["credential_exchange_id"])
}

func TestWaitForStateTimesOut(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	_, err := New(srv.URL, "w1", "connections").WaitForState(context.Background(), "completed", 50*time.Millisecond)
	var terr *TimeoutError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.Equal(t, "completed", terr.DesiredState)
	assert.Equal(t, 50*time.Millisecond, terr.Timeout)
	assert.Contains(t, terr.Error(), "w1")
}

func TestWaitReportsRejection(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"wallet scope mismatch"}`, http.StatusForbidden)
	})

	_, err := New(srv.URL, "w1", "proofs").WaitForState(context.Background(), "done", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	var terr *TimeoutError
	assert.False(t, errors.As(err, &terr))
}

func TestWaitReportsEarlyEndOfStream(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\n")
	})

	_, err := New(srv.URL, "w1", "proofs").WaitForState(context.Background(), "done", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended without a match")
}

func TestSSEScanner(t *testing.T) {
	s := newSSEScanner(strings.NewReader(": ping\n\nevent: x\ndata: a\ndata: b\n\n\ndata: c"))
	require.True(t, s.Next())
	assert.Equal(t, "a\nb", s.Data())
	require.True(t, s.Next())
	assert.Equal(t, "c", s.Data())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}
