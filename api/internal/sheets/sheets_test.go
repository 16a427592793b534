package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type call struct {
	method string
	path   string
	query  string
	body   string
}

type fakeAPI struct {
	mu     sync.Mutex
	calls  []call
	sheets string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(b)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, f.sheets)
	case strings.HasSuffix(r.URL.Path, ":batchUpdate") && strings.Contains(string(b), "addSheet"):
		_, _ = io.WriteString(w, `{"replies":[{"addSheet":{"properties":{"sheetId":99,"title":"Oktober 2026"}}}]}`)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeAPI) all() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newTestStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s, err := New(context.Background(), "SID",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

var october = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)

func TestSelectExistingWorksheetIsCached(t *testing.T) {
	api := &fakeAPI{sheets: `{"sheets":[{"properties":{"title":"September 2026","sheetId":1}},{"properties":{"title":"Oktober 2026","sheetId":7}}]}`}
	s := newTestStore(t, api)

	p, err := s.SelectPartition(context.Background(), october)
	require.NoError(t, err)
	assert.Equal(t, Worksheet{Title: "Oktober 2026", SheetID: 7}, p)

	_, err = s.SelectPartition(context.Background(), october)
	require.NoError(t, err)
	assert.Len(t, api.all(), 1)
}

func TestSelectCreatesMissingWorksheet(t *testing.T) {
	api := &fakeAPI{sheets: `{"sheets":[{"properties":{"title":"Sheet1","sheetId":0}}]}`}
	s := newTestStore(t, api)

	p, err := s.SelectPartition(context.Background(), october)
	require.NoError(t, err)
	assert.Equal(t, Worksheet{Title: "Oktober 2026", SheetID: 99}, p)

	calls := api.all()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1].body, `"title":"Oktober 2026"`)
	assert.Equal(t, http.MethodPut, calls[2].method)
	assert.Contains(t, calls[2].body, "Guru Ganti")
}

func TestInsertAtSendsSingleBatch(t *testing.T) {
	api := &fakeAPI{}
	s := newTestStore(t, api)

	err := s.InsertAt(context.Background(), Worksheet{Title: "Oktober 2026", SheetID: 0}, 0, []any{"2026-10-16 10:00:00", "Sains"})
	require.NoError(t, err)

	calls := api.all()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasSuffix(calls[0].path, ":batchUpdate"))

	var req struct {
		Requests []struct {
			InsertDimension *struct {
				Range struct {
					SheetID    *int64 `json:"sheetId"`
					StartIndex int64  `json:"startIndex"`
					EndIndex   int64  `json:"endIndex"`
				} `json:"range"`
			} `json:"insertDimension"`
			UpdateCells *struct {
				Rows []struct {
					Values []struct {
						UserEnteredValue struct {
							StringValue string `json:"stringValue"`
						} `json:"userEnteredValue"`
					} `json:"values"`
				} `json:"rows"`
			} `json:"updateCells"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal([]byte(calls[0].body), &req))
	require.Len(t, req.Requests, 2)
	ins := req.Requests[0].InsertDimension
	require.NotNil(t, ins)
	require.NotNil(t, ins.Range.SheetID)
	assert.Equal(t, int64(0), *ins.Range.SheetID)
	assert.Equal(t, int64(1), ins.Range.StartIndex)
	assert.Equal(t, int64(2), ins.Range.EndIndex)
	upd := req.Requests[1].UpdateCells
	require.NotNil(t, upd)
	assert.Equal(t, "Sains", upd.Rows[0].Values[1].UserEnteredValue.StringValue)
}

func TestAppendUsesInsertRows(t *testing.T) {
	api := &fakeAPI{}
	s := newTestStore(t, api)

	require.NoError(t, s.Append(context.Background(), Worksheet{Title: "Oktober 2026"}, []any{"a", "b"}))
	calls := api.all()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasSuffix(calls[0].path, ":append"))
	assert.Contains(t, calls[0].query, "insertDataOption=INSERT_ROWS")
	// same literal handling as InsertAt, so "8.15" stays text
	assert.Contains(t, calls[0].query, "valueInputOption=RAW")
	assert.Contains(t, calls[0].body, `["a","b"]`)
}

type otherPartition struct{}

func (otherPartition) Name() string { return "other" }

func TestRejectsForeignPartition(t *testing.T) {
	s := newTestStore(t, &fakeAPI{})
	assert.Error(t, s.Append(context.Background(), otherPartition{}, nil))
	assert.Error(t, s.InsertAt(context.Background(), Worksheet{Title: "x"}, -1, nil))
}

func TestA1QuotesTitle(t *testing.T) {
	assert.Equal(t, "'Oktober 2026'!A1", a1("Oktober 2026", 1))
	assert.Equal(t, "'Guru''s'!A2", a1("Guru's", 2))
	assert.Equal(t, "Mac 2026", Title(time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)))
}
