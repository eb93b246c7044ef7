package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSite struct {
	mu         sync.Mutex
	rejectMeta bool
	posts      []map[string]any
	uploads    []*http.Request
	uploadBody [][]byte
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "editor" || pass != "app pass" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"rest_not_logged_in"}`)
		return
	}

	switch r.URL.Path {
	case usersMePath:
		_, _ = io.WriteString(w, `{"id":7,"name":"Editor"}`)
	case mediaPath:
		body, _ := io.ReadAll(r.Body)
		f.uploads = append(f.uploads, r)
		f.uploadBody = append(f.uploadBody, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":11,"source_url":"https://site.test/wp-content/uploads/a.png"}`)
	case postsPath:
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.posts = append(f.posts, payload)
		if _, hasMeta := payload["meta"]; hasMeta && f.rejectMeta {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":"rest_invalid_param","message":"Invalid parameter(s): meta"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":99,"link":"https://site.test/ansiedade-tem-cura/"}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestSite(t *testing.T, site *fakeSite) *WordPress {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	wp, err := New(context.Background(), Config{BaseURL: srv.URL + "/", Username: "editor", AppPassword: "app pass"}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return wp
}

func TestNewVerifiesAuth(t *testing.T) {
	srv := httptest.NewServer(&fakeSite{})
	defer srv.Close()

	_, err := New(context.Background(), Config{BaseURL: srv.URL, Username: "editor", AppPassword: "wrong"}, srv.Client(), nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	_, err = New(context.Background(), Config{BaseURL: srv.URL}, nil, nil)
	assert.Error(t, err)
}

func TestUploadAsset(t *testing.T) {
	site := &fakeSite{}
	wp := newTestSite(t, site)

	asset, err := wp.UploadAsset(context.Background(), []byte("\x89PNG"), "ansiedade-tem-cura-1.png")
	require.NoError(t, err)
	assert.Equal(t, Asset{ID: 11, URL: "https://site.test/wp-content/uploads/a.png"}, asset)

	require.Len(t, site.uploads, 1)
	assert.Equal(t, "attachment; filename=ansiedade-tem-cura-1.png", site.uploads[0].Header.Get("Content-Disposition"))
	assert.Equal(t, "image/png", site.uploads[0].Header.Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), site.uploadBody[0])
}

func TestCreateEntrySendsYoastMeta(t *testing.T) {
	site := &fakeSite{}
	wp := newTestSite(t, site)

	res, err := wp.CreateEntry(context.Background(), Entry{
		Title:           "Ansiedade tem cura?",
		HTML:            "<h1>Ansiedade</h1>",
		CoverID:         11,
		FocusKeyword:    "ansiedade tem cura",
		MetaDescription: "Descubra.",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{ID: 99, URL: "https://site.test/ansiedade-tem-cura/"}, res)

	require.Len(t, site.posts, 1)
	post := site.posts[0]
	assert.Equal(t, "publish", post["status"])
	assert.EqualValues(t, 11, post["featured_media"])
	assert.Equal(t, map[string]any{
		"_yoast_wpseo_focuskw":  "ansiedade tem cura",
		"_yoast_wpseo_metadesc": "Descubra.",
	}, post["meta"])
}

func TestCreateEntryRetriesWithoutMeta(t *testing.T) {
	site := &fakeSite{rejectMeta: true}
	wp := newTestSite(t, site)

	res, err := wp.CreateEntry(context.Background(), Entry{Title: "T", HTML: "<p>x</p>", Status: "draft", FocusKeyword: "kw"})
	require.NoError(t, err)
	assert.Equal(t, 99, res.ID)

	require.Len(t, site.posts, 2)
	assert.Contains(t, site.posts[0], "meta")
	assert.NotContains(t, site.posts[1], "meta")
	assert.Equal(t, "draft", site.posts[1]["status"])
	assert.NotContains(t, site.posts[1], "featured_media")
}

func TestCreateEntryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == usersMePath {
			_, _ = io.WriteString(w, `{"id":1}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer srv.Close()

	wp, err := New(context.Background(), Config{BaseURL: srv.URL, Username: "u", AppPassword: "p"}, srv.Client(), nil)
	require.NoError(t, err)
	_, err = wp.CreateEntry(context.Background(), Entry{Title: "T", HTML: "x", FocusKeyword: "meta"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.NotErrorIs(t, err, ErrMetaRejected)
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.JPG":  "image/jpeg",
		"a.jpeg": "image/jpeg",
		"a.webp": "image/webp",
		"a.gif":  "image/gif",
		"noext":  "image/png",
	}
	for name, want := range tests {
		assert.Equal(t, want, contentType(name), name)
	}
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	asset, err := l.UploadAsset(ctx, []byte("img"), "capa-1.png")
	require.NoError(t, err)
	assert.Equal(t, Asset{ID: 1, URL: "media/capa-1.png"}, asset)

	res, err := l.CreateEntry(ctx, Entry{Title: "T", HTML: "<h1>T</h1>", CoverID: asset.ID, Status: "publish"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ID)
	assert.True(t, strings.HasPrefix(res.URL, "file://"))

	html, err := os.ReadFile(filepath.Join(dir, "post-2.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>T</h1>", string(html))

	meta, err := os.ReadFile(filepath.Join(dir, "post-2.json"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"featured_media": 1`)
}
