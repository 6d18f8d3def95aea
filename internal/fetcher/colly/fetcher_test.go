package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

func TestFetcherGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/title/1":
			_, _ = w.Write([]byte("<main>" + r.UserAgent() + "</main>"))
		case "/title/2":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<main>missing</main>"))
		case "/title/3":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/title/4":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "range-crawler-test", Timeout: 5 * time.Second})

	page, err := f.Get(context.Background(), srv.URL+"/title/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "<main>range-crawler-test</main>", string(page.Body))
	require.Equal(t, srv.URL+"/title/1", page.URL)

	page, err = f.Get(context.Background(), srv.URL+"/title/2")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.StatusCode)
	require.Equal(t, "<main>missing</main>", string(page.Body))

	for _, path := range []string{"/title/3", "/title/4"} {
		_, err = f.Get(context.Background(), srv.URL+path)
		var fetchErr *crawler.FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.True(t, fetchErr.Transient)
		require.True(t, crawler.IsTransient(err))
	}
}

func TestFetcherAllowsRevisits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, "hit %d", hits.Add(1))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 5 * time.Second})
	for i := 1; i <= 3; i++ {
		page, err := f.Get(context.Background(), srv.URL+"/title/9")
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("hit %d", i), string(page.Body))
	}
	require.Equal(t, int32(3), hits.Load())
}

func TestFetcherConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Get(context.Background(), addr+"/title/1")
	require.Error(t, err)
	require.True(t, crawler.IsTransient(err))
}

func TestFetcherHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	f := New(Config{Timeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx, srv.URL+"/slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var page crawler.Page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &page, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/title/5")},
	})
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "body", string(page.Body))
	require.Equal(t, "https://example.com/title/5", page.FinalURL)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	require.Equal(t, DefaultTimeout, f.cfg.Timeout)
	require.True(t, f.baseCollector.IgnoreRobotsTxt)
	require.True(t, f.baseCollector.AllowURLRevisit)

	f = New(Config{RespectRobots: true, UserAgent: "ua"})
	require.False(t, f.baseCollector.IgnoreRobotsTxt)
	require.Equal(t, "ua", f.baseCollector.UserAgent)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
