package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: store unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) listUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.PendingFilter{Status: model.UpdateStatusPending, Item: q.Get("item")}
	switch status := q.Get("status"); status {
	case "":
	case "all":
		filter.Status = ""
	default:
		filter.Status = model.UpdateStatus(status)
		if !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	var ok bool
	if filter.Limit, filter.Offset, ok = paging(w, r); !ok {
		return
	}

	updates, err := s.store.ListPendingUpdates(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(updates))
}

func (s *Server) getUpdate(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetPendingUpdate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type resolveRequest struct {
	Accept    *bool  `json:"accept"`
	ManagerID string `json:"manager_id"`
}

type resolveResponse struct {
	ID        string             `json:"id"`
	OldStatus model.UpdateStatus `json:"old_status"`
	NewStatus model.UpdateStatus `json:"new_status"`
	Message   string             `json:"message"`
}

func (s *Server) resolveUpdate(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accept == nil {
		writeError(w, http.StatusBadRequest, `body must be {"accept": true|false}`)
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.resolver.Resolve(r.Context(), id, model.DecisionFromBool(*req.Accept), req.ManagerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	msg := "Update rejected"
	if res.NewStatus == model.UpdateStatusAccepted {
		msg = "Update accepted; " + res.Audit.ItemName + " is now " +
			strconv.FormatFloat(res.Audit.NewValue, 'f', -1, 64) + "%"
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		ID:        res.UpdateID,
		OldStatus: res.OldStatus,
		NewStatus: res.NewStatus,
		Message:   msg,
	})
}

// serveEvidence serves a file by base name from the highlighted directory,
// falling back to the raw directory.
func (s *Server) serveEvidence(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	for _, dir := range []string{s.cfg.HighlightedDir, s.cfg.RawDir} {
		if dir == "" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			f.Close() //nolint:errcheck
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			w.Header().Set("Content-Type", "application/pdf")
		}
		http.ServeContent(w, r, name, info.ModTime(), f)
		f.Close() //nolint:errcheck
		return
	}
	writeError(w, http.StatusNotFound, "evidence not found")
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	report, err := s.runner.Run(r.Context(), target)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type analyzeRequest struct {
	Path string `json:"path"`
}

// analyze runs detection on a document that is already in the raw
// evidence directory.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Analysis {
		writeError(w, http.StatusForbidden, "analysis is disabled")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	path, ok := within(s.cfg.RawDir, req.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "path must be inside the raw evidence directory")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Process(r.Context(), []string{path}))
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	filter := store.AuditFilter{Item: r.URL.Query().Get("item")}
	var ok bool
	if filter.Limit, filter.Offset, ok = paging(w, r); !ok {
		return
	}
	entries, err := s.store.ListAuditEntries(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stats.Collect(r.Context(), s.cfg.LookbackHours)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *int
	}{{"limit", &limit}, {"offset", &offset}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+p.key)
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}

// within resolves p (relative paths are taken relative to dir) and reports
// whether it lies inside dir.
func within(dir, p string) (string, bool) {
	if dir == "" {
		return "", false
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(p) && !strings.HasPrefix(filepath.Clean(p), filepath.Clean(dir)+string(filepath.Separator)) {
		p = filepath.Join(dir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
