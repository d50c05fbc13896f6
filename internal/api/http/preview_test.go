package http

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPreview(t *testing.T, ts *testServer, body map[string]any) map[string]any {
	t.Helper()
	w := ts.do("POST", "/api/preview", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func TestPreviewLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	created := createPreview(t, ts, map[string]any{
		"website_url": "https://acme.example/",
		"client_id":   "client-1",
	})
	assert.Equal(t, "ready", created["status"])
	assert.Equal(t, "proxy", created["method"])
	assert.True(t, strings.HasPrefix(created["preview_url"].(string), "http://gateway.test/api/proxy?"))
	id := created["preview_id"].(string)

	w := ts.do("GET", "/api/preview/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode(t, w)
	assert.Equal(t, "auto", st["mode"])
	assert.Equal(t, false, st["fallback_attempted"])

	// the client reports the iframe failed; the session moves to a screenshot
	w = ts.do("POST", "/api/preview/"+id+"/fallback", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fb := decode(t, w)
	assert.Contains(t, fb["preview_url"], "/api/screenshot?")
	status := fb["status"].(map[string]any)
	assert.Equal(t, "ready", status["status"])
	assert.Equal(t, "screenshot", status["method"])
	assert.Equal(t, true, status["fallback_attempted"])
	assert.Equal(t, int32(1), ts.renderer.calls.Load())

	// a second report has nothing left to fall back to
	w = ts.do("POST", "/api/preview/"+id+"/fallback", map[string]any{"reason": "blank image"})
	require.Equal(t, http.StatusOK, w.Code)
	fb = decode(t, w)
	assert.NotContains(t, fb, "preview_url")
	assert.Equal(t, "failed", fb["status"].(map[string]any)["status"])
	assert.Equal(t, int32(1), ts.renderer.calls.Load())

	w = ts.do("DELETE", "/api/preview/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Preview deleted successfully", decode(t, w)["message"])

	w = ts.do("GET", "/api/preview/"+id+"/status", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])
}

func TestCreatePreviewModes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		fetchErr    error
		wantStatus  string
		wantMethod  string
		wantCapture int32
	}{
		{name: "screenshot only", method: "screenshot", wantStatus: "ready", wantMethod: "screenshot", wantCapture: 1},
		{name: "auto falls back", method: "auto", fetchErr: errors.New("connection reset"), wantStatus: "ready", wantMethod: "screenshot", wantCapture: 1},
		{name: "proxy only fails", method: "proxy", fetchErr: errors.New("connection reset"), wantStatus: "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			ts.fetcher.err = tt.fetchErr

			created := createPreview(t, ts, map[string]any{
				"website_url":      "https://acme.example/",
				"client_id":        "client-1",
				"preview_settings": map[string]any{"device": "mobile", "render_method": tt.method},
			})
			assert.Equal(t, tt.wantStatus, created["status"])
			if tt.wantMethod != "" {
				assert.Equal(t, tt.wantMethod, created["method"])
			}
			if tt.wantStatus == "failed" {
				assert.NotEmpty(t, created["error_message"])
			}
			assert.Equal(t, tt.wantCapture, ts.renderer.calls.Load())
		})
	}
}

func TestCreatePreviewBadRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing url",
			body:       map[string]any{"client_id": "client-1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required parameter",
		},
		{
			name:       "bad client id",
			body:       map[string]any{"website_url": "https://acme.example/", "client_id": "a b"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required parameter",
		},
		{
			name: "unknown render method",
			body: map[string]any{
				"website_url":      "https://acme.example/",
				"client_id":        "client-1",
				"preview_settings": map[string]any{"render_method": "pdf"},
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required parameter",
		},
		{
			name:       "blacklisted domain",
			body:       map[string]any{"website_url": "https://blocked.example/", "client_id": "client-1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			w := ts.do("POST", "/api/preview", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantError, decode(t, w)["error"])
			assert.Zero(t, ts.fetcher.calls.Load())
			assert.Zero(t, ts.previews.Sessions().Len())
		})
	}
}

func TestRenderPreview(t *testing.T) {
	ts := newTestServer(t, false)
	id := createPreview(t, ts, map[string]any{
		"website_url": "https://acme.example/",
		"client_id":   "client-1",
	})["preview_id"].(string)

	w := ts.do("GET", "/api/preview/"+id+"/render?method=screenshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["preview_url"], "/api/screenshot?")

	w = ts.do("GET", "/api/preview/"+id+"/render", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["preview_url"], "/api/proxy?")

	w = ts.do("GET", "/api/preview/"+id+"/render?method=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("GET", "/api/preview/not-a-session/render", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do("GET", "/api/preview/bad$id/render", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSharePreview(t *testing.T) {
	ts := newTestServer(t, false)
	id := createPreview(t, ts, map[string]any{
		"website_url": "https://acme.example/",
		"client_id":   "client-1",
	})["preview_id"].(string)

	w := ts.do("GET", "/api/preview/"+id+"/share", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	shareURL := body["share_url"].(string)
	require.True(t, strings.HasPrefix(shareURL, "http://gateway.test/share/"))
	assert.NotEmpty(t, body["expires_at"])

	w = ts.do("GET", strings.TrimPrefix(shareURL, "http://gateway.test"), nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "http://gateway.test/api/proxy?"))

	w = ts.do("GET", "/share/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
