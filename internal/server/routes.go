package server

import (
	"net/http"

	"github.com/ternarybob/harvest/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Download runs
	mux.HandleFunc("/api/downloads", s.handleDownloadsRoute)  // GET (list), POST (start)
	mux.HandleFunc("/api/downloads/", s.handleDownloadRoutes) // /{id} and subpaths

	// API routes - JazzHR job postings
	mux.HandleFunc("/api/jobs", s.app.JazzHRHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.APIHandler.StatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDownloadsRoute routes /api/downloads requests (list and start)
func (s *Server) handleDownloadsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.DownloadHandler.ListHandler(w, r)
	case "POST":
		s.app.DownloadHandler.StartHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDownloadRoutes routes /api/downloads/{id} requests and subpaths
func (s *Server) handleDownloadRoutes(w http.ResponseWriter, r *http.Request) {
	downloadID, suffix := handlers.SplitDownloadPath(r.URL.Path)
	if downloadID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch suffix {
	case "":
		switch r.Method {
		case "GET":
			s.app.DownloadHandler.GetHandler(w, r, downloadID)
		case "DELETE":
			s.app.DownloadHandler.CancelHandler(w, r, downloadID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "progress":
		s.app.ProgressHandler.StreamHandler(w, r, downloadID)
	case "authenticate":
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.DownloadHandler.AuthenticateHandler(w, r, downloadID)
	case "files":
		if r.Method != "GET" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.DownloadHandler.FilesHandler(w, r, downloadID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleJobRoutes routes /api/jobs/{id} requests and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, suffix := handlers.SplitJobPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch suffix {
	case "":
		if r.Method != "GET" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.JazzHRHandler.GetJobHandler(w, r, jobID)
	case "description":
		if r.Method != "GET" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.JazzHRHandler.DescriptionHandler(w, r, jobID)
	case "download":
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.JazzHRHandler.APIDownloadHandler(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
