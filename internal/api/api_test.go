package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/pipeline"
	"github.com/R204570/LexAudit-Flow/internal/review"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, url string) (*pipeline.Report, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Report), args.Error(1)
}

func (m *mockRunner) Process(ctx context.Context, docs []string) *pipeline.Report {
	return m.Called(ctx, docs).Get(0).(*pipeline.Report)
}

type testEnv struct {
	store  *store.SQLiteStore
	runner *mockRunner
	cfg    Config
	h      http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	_, err = st.SeedItems(context.Background(), []model.Item{{Name: "Laptops", Rate: 18}, {Name: "Tablets", Rate: 12}})
	require.NoError(t, err)

	cfg := Config{
		HighlightedDir: filepath.Join(dir, "evidence", "highlighted"),
		RawDir:         filepath.Join(dir, "evidence", "raw"),
		CORSOrigins:    []string{"http://localhost:5173"},
		Analysis:       true,
	}
	require.NoError(t, os.MkdirAll(cfg.HighlightedDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.RawDir, 0o755))

	runner := &mockRunner{}
	return &testEnv{
		store:  st,
		runner: runner,
		cfg:    cfg,
		h:      New(st, review.NewEngine(st), runner, cfg).Handler(),
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) pending(t *testing.T, item string, rate float64) string {
	t.Helper()
	u := &model.PendingUpdate{DetectedItem: item, CurrentRate: model.Float(18), ProposedRate: rate, EvidencePath: "x.pdf", EvidenceQuote: "q"}
	require.NoError(t, e.store.CreatePendingUpdate(context.Background(), u))
	return u.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := newEnv(t).do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_StoreUnreachable(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Close())

	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestListItems(t *testing.T) {
	rec := newEnv(t).do(t, http.MethodGet, "/tax-schemes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]model.Item](t, rec)
	assert.Len(t, items, 2)
}

func TestListUpdates_DefaultsToPending(t *testing.T) {
	e := newEnv(t)
	done := e.pending(t, "Laptops", 22)
	open := e.pending(t, "Tablets", 5)
	rec := e.do(t, http.MethodPost, "/updates/"+done+"/accept", map[string]any{"accept": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ups := decode[[]model.PendingUpdate](t, rec)
	require.Len(t, ups, 1)
	assert.Equal(t, open, ups[0].ID)

	rec = e.do(t, http.MethodGet, "/updates?status=all", nil)
	assert.Len(t, decode[[]model.PendingUpdate](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/updates?status=rejected", nil)
	assert.Len(t, decode[[]model.PendingUpdate](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/updates?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/updates?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUpdates_EmptyIsArray(t *testing.T) {
	rec := newEnv(t).do(t, http.MethodGet, "/updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetUpdate(t *testing.T) {
	e := newEnv(t)
	id := e.pending(t, "Laptops", 22)

	rec := e.do(t, http.MethodGet, "/updates/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[model.PendingUpdate](t, rec)
	assert.Equal(t, "Laptops", u.DetectedItem)

	rec = e.do(t, http.MethodGet, "/updates/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveUpdate(t *testing.T) {
	e := newEnv(t)
	id := e.pending(t, "Laptops", 22)

	rec := e.do(t, http.MethodPost, "/updates/"+id+"/accept", map[string]any{"accept": true, "manager_id": "m1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[resolveResponse](t, rec)
	assert.Equal(t, model.UpdateStatusPending, resp.OldStatus)
	assert.Equal(t, model.UpdateStatusAccepted, resp.NewStatus)
	assert.Contains(t, resp.Message, "Laptops is now 22%")

	item, err := e.store.GetItem(context.Background(), "Laptops")
	require.NoError(t, err)
	assert.InDelta(t, 22.0, item.Rate, 0.0001)

	rec = e.do(t, http.MethodPost, "/updates/"+id+"/accept", map[string]any{"accept": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/updates/missing/accept", map[string]any{"accept": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/updates/"+id+"/accept", map[string]any{"manager_id": "m1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeEvidence(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.cfg.HighlightedDir, "u_highlighted.pdf"), []byte("%PDF-hl"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(e.cfg.RawDir, "notice.pdf"), []byte("%PDF-raw"), 0o644))

	rec := e.do(t, http.MethodGet, "/evidence/u_highlighted.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-hl", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/evidence/notice.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-raw", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/evidence/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/evidence/..%2Fapi.db", nil)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SQLite")
}

func TestCrawl(t *testing.T) {
	e := newEnv(t)
	report := &pipeline.Report{URL: "https://example.gov", Documents: []string{"a.pdf"}, Results: []pipeline.DocumentResult{{Document: "a.pdf"}}}
	e.runner.On("Run", mock.Anything, "https://example.gov").Return(report, nil)

	rec := e.do(t, http.MethodPost, "/crawl?url=https://example.gov", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[pipeline.Report](t, rec)
	assert.Equal(t, []string{"a.pdf"}, got.Documents)

	rec = e.do(t, http.MethodPost, "/crawl", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCrawl_Disabled(t *testing.T) {
	e := newEnv(t)
	e.runner.On("Run", mock.Anything, mock.Anything).Return(nil, pipeline.ErrCrawlingDisabled)

	rec := e.do(t, http.MethodPost, "/crawl?url=https://example.gov", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyze(t *testing.T) {
	e := newEnv(t)
	doc := filepath.Join(e.cfg.RawDir, "notice.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF"), 0o644))
	abs, err := filepath.Abs(doc)
	require.NoError(t, err)
	e.runner.On("Process", mock.Anything, []string{abs}).Return(&pipeline.Report{Documents: []string{abs}})

	rec := e.do(t, http.MethodPost, "/analyze", map[string]string{"path": doc})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/analyze", map[string]string{"path": "notice.pdf"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/analyze", map[string]string{"path": "/etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/analyze", map[string]string{"path": "../api.db"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/analyze", map[string]string{"path": "absent.pdf"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/analyze", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAudit(t *testing.T) {
	e := newEnv(t)
	a := e.pending(t, "Laptops", 22)
	b := e.pending(t, "Tablets", 5)
	e.do(t, http.MethodPost, "/updates/"+a+"/accept", map[string]any{"accept": true})
	e.do(t, http.MethodPost, "/updates/"+b+"/accept", map[string]any{"accept": false})

	rec := e.do(t, http.MethodGet, "/audit-logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]model.AuditEntry](t, rec)
	require.Len(t, entries, 2)

	rec = e.do(t, http.MethodGet, "/audit-logs?item=Tablets", nil)
	entries = decode[[]model.AuditEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditUpdateRejected, entries[0].Action)
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	e.pending(t, "Laptops", 22)
	id := e.pending(t, "Tablets", 5)
	e.do(t, http.MethodPost, "/updates/"+id+"/accept", map[string]any{"accept": true})

	rec := e.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Pending        int `json:"pending"`
		Accepted       int `json:"accepted"`
		RecentAccepted int `json:"recent_accepted"`
		LookbackHours  int `json:"lookback_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 1, snap.Accepted)
	assert.Equal(t, 1, snap.RecentAccepted)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCORS(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/updates", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithin(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	p, ok := within(dir, "a.pdf")
	assert.True(t, ok)
	assert.True(t, strings.HasSuffix(p, filepath.Join("raw", "a.pdf")))

	_, ok = within(dir, "../a.pdf")
	assert.False(t, ok)
	_, ok = within("", "a.pdf")
	assert.False(t, ok)
}
