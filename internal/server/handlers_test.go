package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"livefeed/internal/cache"
	"livefeed/internal/core"
	"livefeed/internal/scheduler"
	"livefeed/internal/sse"
)

func newTestServer(t *testing.T, cfg *Config) (*Server, *cache.VersionedCache, *sse.Hub, *scheduler.Scheduler) {
	t.Helper()
	c := cache.New(100)
	hub := sse.NewHub(nil)
	sched := scheduler.New(nil)
	t.Cleanup(sched.Stop)
	return New(c, hub, sched, cfg), c, hub, sched
}

func doJSON(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)
	rec := doJSON(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveConfig(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)
	rec := doJSON(srv, http.MethodGet, "/live/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, float64(60), body.Get("default_ttl_seconds").Float())
	assert.Equal(t, float64(30), body.Get("resource_types.finance:ticker.ttl_seconds").Float())
	assert.Equal(t, float64(3600), body.Get("resource_types.ai:analysis.ttl_seconds").Float())
	// ticker quotes refresh fastest, AI analyses slowest
	assert.Less(t,
		body.Get("resource_types.finance:ticker.ttl_seconds").Float(),
		body.Get("resource_types.ai:analysis.ttl_seconds").Float())
}

func TestLiveStatus(t *testing.T) {
	srv, c, hub, sched := newTestServer(t, nil)
	c.Set(core.ResourceFinanceTicker, "aapl", 1, 0)
	c.Get(core.ResourceFinanceTicker, "aapl")
	id := hub.RegisterClient("u")
	hub.Subscribe(id, "finance:ticker")
	sched.AddJob("noop", func() {}, time.Hour)
	sched.Start()

	rec := doJSON(srv, http.MethodGet, "/live/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, int64(1), body.Get("cache.size").Int())
	assert.Equal(t, int64(1), body.Get("cache.hits").Int())
	assert.True(t, body.Get("scheduler.running").Bool())
	assert.Equal(t, "noop", body.Get("scheduler.jobs.0").String())
	assert.Equal(t, int64(1), body.Get("sse.clients").Int())
	assert.Equal(t, int64(1), body.Get("sse.channels.finance:ticker").Int())
}

func TestPollConditionalGet(t *testing.T) {
	srv, c, _, _ := newTestServer(t, nil)
	ent := c.Set(core.ResourceFinanceTicker, "AAPL", map[string]any{"price": 189.5}, 0)

	t.Run("MissingEntryIs404", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/live/poll/finance:ticker/tsla", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "primary endpoint")
	})

	t.Run("UnknownTypeIs400", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/live/poll/bogus:type/x", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NoHeaderIs200WithETag", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/live/poll/finance:ticker/aapl", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"`+ent.Version+`"`, rec.Header().Get("ETag"))

		body := gjson.Parse(rec.Body.String())
		assert.Equal(t, 189.5, body.Get("data.price").Float())
		assert.Equal(t, ent.Version, body.Get("_live.version").String())
		assert.Equal(t, "finance:ticker", body.Get("_live.resource_type").String())
		assert.Greater(t, body.Get("_live.ttl_remaining_seconds").Float(), 0.0)
	})

	t.Run("MatchingVersionIs304", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/live/poll/finance:ticker/AAPL", nil)
		req.Header.Set("If-None-Match", `"`+ent.Version+`"`)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("StaleVersionIs200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/live/poll/finance:ticker/aapl", nil)
		req.Header.Set("If-None-Match", `"deadbeef0000"`)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"`+ent.Version+`"`, rec.Header().Get("ETag"))
	})
}

func TestInvalidate(t *testing.T) {
	srv, c, _, _ := newTestServer(t, nil)
	c.Set(core.ResourceFinanceTicker, "aapl", 1, 0)
	c.Set(core.ResourceFinanceTicker, "msft", 2, 0)

	rec := doJSON(srv, http.MethodPost, "/live/invalidate",
		`{"resource_type":"finance:ticker","identifier":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "invalidated").Bool())

	rec = doJSON(srv, http.MethodPost, "/live/invalidate",
		`{"resource_type":"finance:ticker"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "invalidated_count").Int())

	rec = doJSON(srv, http.MethodPost, "/live/invalidate",
		`{"resource_type":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribePreview(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rec := doJSON(srv, http.MethodPost, "/live/subscribe",
		`{"subscriptions":[{"type":"finance:ticker","id":"AAPL"},{"type":"sports:match","id":"m-1"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := gjson.Parse(rec.Body.String())
	subs := body.Get("subscriptions").Array()
	require.Len(t, subs, 2)
	assert.Equal(t, "aapl", subs[0].Get("id").String())
	assert.Equal(t, float64(30), subs[0].Get("ttl_seconds").Float())
	assert.Equal(t, "sports:match", subs[1].Get("channel").String())

	rec = doJSON(srv, http.MethodPost, "/live/subscribe",
		`{"subscriptions":[{"type":"bogus","id":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, http.MethodPost, "/live/subscribe", `{"subscriptions":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &Config{MasterKey: "sekret"})

	rec := doJSON(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	rec = doJSON(srv, http.MethodGet, "/live/config", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/live/config", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req = httptest.NewRequest(http.MethodGet, "/live/config", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec3 := httptest.NewRecorder()
	srv.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)
}
