package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s := newTestStore(t)
	r := chi.NewRouter()
	NewHandler(NewService(s, &fakePublisher{}, 50, 20)).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, s
}

func doRequest(t *testing.T, method, url, tenant, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rd)
	require.NoError(t, err)
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func errorCode(t *testing.T, decoded map[string]json.RawMessage) string {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(decoded["error"], &e))
	return e.Code
}

func TestHTTP_ListRequiresTenant(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/feed", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", errorCode(t, body))
}

func TestHTTP_ListValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/feed?limit=zero", "tenant-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_limit", errorCode(t, body))

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/feed?limit=-5", "tenant-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_limit", errorCode(t, body))

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/feed?cursor=%21%21", "tenant-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_cursor", errorCode(t, body))
}

func TestHTTP_ListReturnsPage(t *testing.T) {
	srv, s := newTestServer(t)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedEvent(t, s, "tenant-1", base.Add(time.Duration(i)*time.Second), nil, nil)
	}
	seedEvent(t, s, "tenant-2", base, nil, nil)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/feed?limit=2", "tenant-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []model.FeedEvent
	require.NoError(t, json.Unmarshal(body["events"], &events))
	require.Len(t, events, 2)

	var next string
	require.NoError(t, json.Unmarshal(body["next_cursor"], &next))
	assert.NotEmpty(t, next)
}

func TestHTTP_BulkUpdate(t *testing.T) {
	srv, s := newTestServer(t)
	e := seedEvent(t, s, "tenant-1", time.Now().UTC(), nil, nil)

	resp, body := doRequest(t, http.MethodPatch, srv.URL+"/api/feed", "tenant-1",
		`{"event_ids": ["`+e.ID+`"], "action": "mark_read"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated int
	require.NoError(t, json.Unmarshal(body["updated"], &updated))
	assert.Equal(t, 1, updated)

	got, err := s.GetFeedEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestHTTP_BulkUpdateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodPatch, srv.URL+"/api/feed", "tenant-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_body", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPatch, srv.URL+"/api/feed", "tenant-1",
		`{"event_ids": [], "action": "mark_read"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_body", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPatch, srv.URL+"/api/feed", "tenant-1",
		`{"event_ids": ["x"], "action": "shout"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_action", errorCode(t, body))
}

func TestHTTP_TakeActionStatusMapping(t *testing.T) {
	srv, s := newTestServer(t)
	e := seedEvent(t, s, "tenant-1", time.Now().UTC(),
		[]model.FeedAction{model.ActionDismissGap}, nil)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/feed/ghost/action", "tenant-1",
		`{"action": "dismiss_gap"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/feed/"+e.ID+"/action", "tenant-2",
		`{"action": "dismiss_gap"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/feed/"+e.ID+"/action", "tenant-1",
		`{"action": "rescan"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "action_not_offered", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/feed/"+e.ID+"/action", "tenant-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_body", errorCode(t, body))

	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/feed/"+e.ID+"/action", "tenant-1",
		`{"action": "dismiss_gap"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var applied bool
	require.NoError(t, json.Unmarshal(body["applied"], &applied))
	assert.True(t, applied)
}
