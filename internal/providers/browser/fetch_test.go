package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(cfg Config) *Client {
	return NewClient(cfg, nil)
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestClient(DefaultConfig()).Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, "<html><body>ok</body></html>", string(page.Body))
	assert.Equal(t, srv.URL+"/page", page.FinalURL)
	assert.Contains(t, gotUA, "Chrome/120")
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetchSniffsMissingContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>x</title></head></html>"))
	}))
	defer srv.Close()

	page, err := newTestClient(DefaultConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page.ContentType, "text/html"))
}

func TestFetchUpstreamStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			_, err := newTestClient(DefaultConfig()).Fetch(context.Background(), srv.URL)
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, KindHTTPStatus, fe.Kind)
			assert.Equal(t, status, fe.Status)
			assert.Equal(t, http.StatusText(status), fe.StatusText)
		})
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte("<p>new</p>"))
	}))
	defer srv.Close()

	page, err := newTestClient(DefaultConfig()).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", page.FinalURL)
	assert.Equal(t, "/new", page.URL.Path)
}

func TestFetchRedirectLimit(t *testing.T) {
	var hops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestClient(DefaultConfig()).Fetch(context.Background(), srv.URL+"/r")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.LessOrEqual(t, hops.Load(), int32(6))
}

func TestFetchRedirectCheck(t *testing.T) {
	blocked := errors.New("blocked hop")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/internal", http.StatusFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.CheckRedirect = func(next *url.URL) error {
		if next.Path == "/internal" {
			return blocked
		}
		return nil
	}

	_, err := newTestClient(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, blocked)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond

	_, err := newTestClient(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	_, err := newTestClient(DefaultConfig()).Fetch(context.Background(), target)
	require.Error(t, err)
	assert.Equal(t, KindRefused, KindOf(err))
}

func TestFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(DefaultConfig()).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
}

func TestFetchBodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxBodySize = 1024

	_, err := newTestClient(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindTooLarge, KindOf(err))
}

func TestDecode(t *testing.T) {
	latin1 := []byte("<html><body><p>caf\xe9</p></body></html>")

	out, name := Decode(latin1, "text/html; charset=iso-8859-1")
	assert.Equal(t, "windows-1252", name)
	assert.Contains(t, string(out), "café")

	utf8 := []byte("<html><body><p>café</p></body></html>")
	out, name = Decode(utf8, "text/html; charset=utf-8")
	assert.Equal(t, "utf-8", name)
	assert.Equal(t, utf8, out)
}

func TestParse(t *testing.T) {
	page := &Page{
		Body:        []byte("<html><head><title>Caf\xe9</title></head></html>"),
		ContentType: "text/html; charset=iso-8859-1",
	}
	doc, err := Parse(page)
	require.NoError(t, err)
	assert.Equal(t, "Café", doc.Find("title").Text())
}
