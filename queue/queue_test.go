package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"
)

func TestPendingRows(t *testing.T) {
	rows := [][]string{{"kw1", "Done", "http://x"}, {"kw2", "", ""}, {"kw3", "  ", ""}}
	got := PendingRows(rows, 1, "Pendente")
	assert.Equal(t, []KeywordTask{{Row: 2, Keyword: "kw2"}, {Row: 3, Keyword: "kw3"}}, got)
}

func TestPendingRowsEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]string
		marker string
		want   []KeywordTask
	}{
		{"short rows", [][]string{{"kw"}, {}}, "", []KeywordTask{{Row: 2, Keyword: "kw"}}},
		{"blank keyword", [][]string{{"  ", ""}}, "", nil},
		{"pending marker", [][]string{{"kw", "pendente"}}, "Pendente", []KeywordTask{{Row: 2, Keyword: "kw"}}},
		{"marker disabled", [][]string{{"kw", "Pendente"}}, "", nil},
		{"error status", [][]string{{"kw", "Erro"}}, "Pendente", nil},
		{"keyword trimmed", [][]string{{" kw ", ""}}, "", []KeywordTask{{Row: 2, Keyword: "kw"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PendingRows(tt.rows, DataStartRow, tt.marker))
		})
	}
}

func TestCompletedLinks(t *testing.T) {
	rows := [][]string{
		{"kw1", "Done", "https://site/a"},
		{"kw2", "done", "http://site/b"},
		{"kw3", "Done", "ver depois"},
		{"kw4", "", "https://site/d"},
		{"", "Done", "https://site/e"},
	}
	assert.Equal(t, []Link{
		{Keyword: "kw1", URL: "https://site/a"},
		{Keyword: "kw2", URL: "http://site/b"},
	}, CompletedLinks(rows, "Done"))
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory([][]string{{"kw1", "", ""}, {"kw2"}}, Options{})

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, m.Complete(ctx, 3, "https://site/kw2"))
	require.NoError(t, m.Append(ctx, []string{"Novo tema", " "}))
	assert.ErrorIs(t, m.Complete(ctx, 1, "x"), ErrNoRows)
	assert.ErrorIs(t, m.Complete(ctx, 9, "x"), ErrNoRows)

	rows := m.Snapshot()
	assert.Equal(t, []string{"kw2", "Done", "https://site/kw2"}, rows[1])
	assert.Equal(t, []string{"Novo tema", "Pendente", "", "Sugestão IA"}, rows[2])

	// the appended suggestion is itself pending work
	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []KeywordTask{{Row: 2, Keyword: "kw1"}, {Row: 4, Keyword: "Novo tema"}}, pending)

	links, err := m.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Link{{Keyword: "kw2", URL: "https://site/kw2"}}, links)
}

type fakeSheetsAPI struct {
	mu     sync.Mutex
	values [][]string
	writes []string
	bodies []map[string]any
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Sheet1!A2:D1000", "majorDimension": "ROWS", "values": f.values})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"properties": map[string]any{"title": "Pautas"}})
	default:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.bodies = append(f.bodies, body)
		f.writes = append(f.writes, r.Method+" "+r.URL.Path+" "+r.URL.Query().Get("valueInputOption")+" "+r.URL.Query().Get("insertDataOption"))
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}
}

func newTestSheets(t *testing.T, api *fakeSheetsAPI) *Sheets {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := NewSheetsService(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	s, err := NewSheets(svc, "sheet-id", Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestSheetsReadsPendingAndInventory(t *testing.T) {
	api := &fakeSheetsAPI{values: [][]string{{"kw1", "Done", "http://x"}, {"kw2", "", ""}, {"kw3", "  ", ""}}}
	s := newTestSheets(t, api)
	ctx := context.Background()

	require.NoError(t, s.Check(ctx))

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []KeywordTask{{Row: 3, Keyword: "kw2"}, {Row: 4, Keyword: "kw3"}}, pending)

	links, err := s.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Link{{Keyword: "kw1", URL: "http://x"}}, links)
}

func TestSheetsWrites(t *testing.T) {
	api := &fakeSheetsAPI{}
	s := newTestSheets(t, api)
	ctx := context.Background()

	require.NoError(t, s.Complete(ctx, 5, "https://site/p"))
	require.NoError(t, s.Append(ctx, []string{"Tema A"}))
	require.NoError(t, s.Append(ctx, nil))
	assert.ErrorIs(t, s.Complete(ctx, 1, "x"), ErrNoRows)

	require.Len(t, api.writes, 2)
	assert.Equal(t, "PUT /v4/spreadsheets/sheet-id/values/B5:C5 RAW ", api.writes[0])
	assert.Equal(t, "POST /v4/spreadsheets/sheet-id/values/A:D:append RAW INSERT_ROWS", api.writes[1])
	assert.Equal(t, []any{[]any{"Done", "https://site/p"}}, api.bodies[0]["values"])
	assert.Equal(t, []any{[]any{"Tema A", "Pendente", "", "Sugestão IA"}}, api.bodies[1]["values"])
}

func TestNewSheetsValidates(t *testing.T) {
	_, err := NewSheets(nil, "id", Options{}, nil)
	assert.Error(t, err)

	_, err = NewSheetsService(context.Background(), "/does/not/exist.json")
	assert.Error(t, err)
}
