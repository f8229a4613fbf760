package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/session"
)

const (
	maxFormSize    = int64(50 << 20) // 50MB
	maxMessageSize = int64(64 << 10)
)

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMessage routes one inbound chat message
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := s.deps.Messages.HandleText(r.Context(), req.Phone, req.Text); err != nil {
		slog.Error("Error handling message", "phone", req.Phone, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadReceipt captures a receipt. The original file is optional and
// the extracted fields arrive as JSON in the "data" field.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	phone := r.FormValue("phone")
	if strings.TrimSpace(phone) == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	var (
		filename    string
		contentType string
		data        []byte
	)
	f, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
			return
		}
		filename = header.Filename
		contentType = detectContentType(header.Header.Get("Content-Type"), filename, data)
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "Error reading file")
		return
	}

	rec, err := s.deps.Receipts.HandleReceipt(r.Context(), phone, filename, data, contentType, []byte(r.FormValue("data")))
	if err != nil {
		slog.Error("Error capturing receipt", "phone", phone, "filename", filename, "error", err)
		if errors.Is(err, receipt.ErrInvalidExtraction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	writeJSON(w, http.StatusCreated, rec)
}

// detectContentType prefers the declared type, then the extension, then sniffing
func detectContentType(declared, filename string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

// handleGetReport serves a generated report file
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Reports.Path(r.PathValue("name"))
	if err != nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(path)}))
	http.ServeFile(w, r, path)
}

// handleGetReceiptFile returns the stored original of a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	if user != receipt.UserDir(user) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	name := r.PathValue("name")
	data, err := s.deps.Archive.GetReceiptFile(user + "/" + name)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", detectContentType("", name, data))
	w.Write(data)
}

// handleDeleteReceipt removes a receipt and its stored original
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	phone, id := r.PathValue("phone"), r.PathValue("id")
	if err := s.deps.Archive.DeleteReceipt(phone, id); err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			http.Error(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting receipt", "phone", phone, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting receipt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReportStats returns a snapshot of the reports directory
func (s *Server) handleReportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Reports.GetReportStats()
	if err != nil {
		slog.Error("Error reading report stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCleanup deletes reports older than ?days=N
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 0 {
		writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
		return
	}

	deleted, err := s.deps.Reports.CleanupOldReports(days)
	if err != nil {
		// partial cleanups still report what was removed
		slog.Error("Error cleaning up reports", "deleted", deleted, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"deleted": deleted, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleSetPlan switches a user between plans
func (s *Server) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan session.Plan `json:"plan"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Plan.Valid() {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}

	if err := s.deps.Plans.SetPlan(r.PathValue("phone"), req.Plan); err != nil {
		slog.Error("Error setting plan", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
