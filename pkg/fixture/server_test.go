package fixture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/reqguard/pkg/observability"
)

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPageHasGuardLinks(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil).Handler())
	defer srv.Close()

	resp := get(t, srv, "/?reload=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	for _, id := range []string{"noRequest", "ajax", "http"} {
		assert.Equal(t, 1, doc.Find("a#"+id).Length(), "link %s", id)
	}
	href, _ := doc.Find("a#http").Attr("href")
	assert.Equal(t, "/?reload=4", href)
	target, _ := doc.Find("a#http").Attr("target")
	assert.Equal(t, "reloadFrame", target)
	assert.Equal(t, 1, doc.Find(`iframe[name="reloadFrame"]`).Length())

	reload, _ := doc.Find("#status").Attr("data-reload")
	assert.Equal(t, "3", reload)
}

func TestAjaxCounts(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get(t, srv, "/ajax")
	resp := get(t, srv, "/ajax")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(body))

	get(t, srv, "/")
	pages, ajax := s.Counts()
	assert.Equal(t, int64(1), pages)
	assert.Equal(t, int64(2), ajax)
}

func TestScripts(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil).Handler())
	defer srv.Close()

	resp := get(t, srv, "/scripts/two-clicks-with-timeout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/javascript"))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "setTimeout")

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/scripts/nope").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil).Handler())
	defer srv.Close()

	before := testutil.ToFloat64(observability.FixtureRequests.WithLabelValues("/ajax"))
	get(t, srv, "/ajax")
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(observability.FixtureRequests.WithLabelValues("/ajax")) >= before+1
	}, time.Second, 5*time.Millisecond)

	resp := get(t, srv, "/metrics")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "reqguard_fixture_requests_total")
}

func TestListenAndServe(t *testing.T) {
	s := NewServer(nil)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get(s.URL() + "/ajax")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
