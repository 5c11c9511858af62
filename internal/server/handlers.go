package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmfile"
	"example.com/kmgate/internal/manifest"
	"example.com/kmgate/internal/report"
)

// FileStatus is one entry of the /files listing.
type FileStatus struct {
	Name    string               `json:"name"`
	Size    int64                `json:"size"`
	Journal *common.JournalEntry `json:"journal,omitempty"`
}

// RecordLine is one line of the /records stream.
type RecordLine struct {
	Entry  kmfile.MapEntry `json:"entry"`
	Kind   string          `json:"kind"`
	Record kmall.Record    `json:"record"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paths, err := common.SurveyFiles(s.dataDir)
	if err != nil {
		http.Error(w, fmt.Sprintf("list files: %v", err), http.StatusInternalServerError)
		return
	}
	var last map[string]common.JournalEntry
	if s.journal != nil {
		entries, err := common.ReadJournal(s.journal.Path())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			http.Error(w, fmt.Sprintf("read journal: %v", err), http.StatusInternalServerError)
			return
		}
		last = common.LastByPath(entries)
	}
	out := make([]FileStatus, 0, len(paths))
	for _, p := range paths {
		st := FileStatus{Name: filepath.Base(p)}
		if info, err := os.Stat(p); err == nil {
			st.Size = info.Size()
		}
		if e, ok := last[p]; ok {
			st.Journal = &e
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f, err := s.open(r.URL.Query().Get("file"))
	if err != nil {
		httpError(w, err)
		return
	}
	sum, err := report.Summarize(f.Index())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f, err := s.open(r.URL.Query().Get("file"))
	if err != nil {
		httpError(w, err)
		return
	}
	sum, err := report.Summarize(f.Index())
	if err != nil {
		httpError(w, err)
		return
	}
	tmp, err := os.CreateTemp(s.workDir, "report-*.pdf")
	if err != nil {
		httpError(w, err)
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())
	if err := report.SaveSummaryPDF(sum, tmp.Name()); err != nil {
		http.Error(w, fmt.Sprintf("render report: %v", err), http.StatusInternalServerError)
		return
	}
	name := strings.TrimSuffix(filepath.Base(f.Path()), filepath.Ext(f.Path())) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, tmp.Name())
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f, err := s.open(q.Get("file"))
	if err != nil {
		httpError(w, err)
		return
	}
	v, err := f.Extract(q.Get("what"), q.Get("source"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleRecords streams decoded records as NDJSON. Query parameters:
// where (CEL), limit, sorted.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f, err := s.open(q.Get("file"))
	if err != nil {
		httpError(w, err)
		return
	}
	opts := kmfile.WalkOptions{Sorted: q.Get("sorted") == "1" || q.Get("sorted") == "true"}
	if where := q.Get("where"); where != "" {
		if opts.Filter, err = kmfile.NewEntryFilter(where); err != nil {
			httpError(w, err)
			return
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	out := NewNDJSONWriter(w)
	err = f.Walk(r.Context(), opts, func(e kmfile.MapEntry, rec kmall.Record) error {
		return out.WriteObject(RecordLine{Entry: e, Kind: rec.Kind().String(), Record: rec})
	})
	if err != nil {
		common.Logf("records %s: stopped after %d lines: %v", q.Get("file"), out.Lines(), err)
		// headers are gone; the error becomes the last line
		out.WriteObject(map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var paths []string
	if names := r.URL.Query().Get("files"); names != "" {
		for _, name := range strings.Split(names, ",") {
			p, err := s.resolveFile(name)
			if err != nil {
				httpError(w, err)
				return
			}
			paths = append(paths, p)
		}
	} else {
		var err error
		if paths, err = common.SurveyFiles(s.dataDir); err != nil {
			httpError(w, err)
			return
		}
	}
	m, err := manifest.Build(paths)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
