package server

import "net/http"

func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/files", s.handleFiles)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/report.pdf", s.handleReportPDF)
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/manifest", s.handleManifest)
	return mux
}
