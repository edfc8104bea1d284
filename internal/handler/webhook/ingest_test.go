package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/webhooks-service/internal/adapter/store"
	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []*model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Event(nil), p.events...)
}

func newServer(t *testing.T) (*httptest.Server, *recordingPublisher, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	es := store.NewMemoryStore(time.Minute, 10)
	t.Cleanup(func() { _ = es.Close() })
	pub := &recordingPublisher{}

	r := chi.NewRouter()
	NewHandler(service.NewIngester(es, pub, logger, "admin"), logger).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, pub, es
}

func post(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestReceivePublishesCanonicalEvent(t *testing.T) {
	srv, pub, es := newServer(t)

	resp := post(t, srv.URL+"/tenant/topic/present_proof_v2_0",
		`{"pres_ex_id":"p1","state":"presentation_received"}`,
		map[string]string{HeaderWalletID: "w1", HeaderGroupID: "g1"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	events := pub.published()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.TopicProofs, ev.Topic)
	assert.Equal(t, "w1", ev.WalletID)
	assert.Equal(t, "g1", ev.GroupID)
	assert.Equal(t, "tenant", ev.Origin)
	assert.Equal(t, "presentation-received", ev.State())

	stored, err := es.Read(context.Background(), "w1", time.Minute)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestReceiveDefaultsToAdminWallet(t *testing.T) {
	srv, pub, _ := newServer(t)

	post(t, srv.URL+"/governance/topic/connections", `{"connection_id":"c1","state":"active"}`, nil)
	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, "admin", events[0].WalletID)
}

func TestReceiveAlwaysAnswersNoContent(t *testing.T) {
	srv, pub, _ := newServer(t)

	cases := map[string]string{
		"/tenant/topic/ping":          `{"state":"active"}`,
		"/tenant/topic/connections":   `{"state":"active"}`,
		"/tenant/topic/basicmessages": `not json`,
	}
	for path, body := range cases {
		resp := post(t, srv.URL+path, body, map[string]string{HeaderWalletID: "w1"})
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
	}
	assert.Empty(t, pub.published())
}
