package expense

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/expense-snap/internal/extraction"
)

// extractResponse is the envelope returned by POST /api/extract
type extractResponse struct {
	Success bool                    `json:"success"`
	Data    *extraction.ExpenseData `json:"data,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// allowedImageTypes is the accepted upload MIME whitelist
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/heic": true,
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleExtract accepts a multipart receipt upload, runs the extraction
// pipeline, and returns the validated fields. Invalid uploads are 400;
// every pipeline failure is 500.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Cap the body before the multipart parser touches it so oversized
	// uploads never reach the pipeline
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileSize)
	if err := r.ParseMultipartForm(s.config.MaxFileSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			msg = "File too large. Maximum size is 6MB."
		}
		writeJSON(w, http.StatusBadRequest, extractResponse{Error: msg})
		return
	}

	f, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, extractResponse{Error: "No image file provided"})
		return
	}
	defer f.Close()

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" {
		contentType = contentTypeFromExt(header.Filename)
	}
	if !allowedImageTypes[contentType] {
		writeJSON(w, http.StatusBadRequest, extractResponse{
			Error: "Invalid file type. Only JPG, PNG, and HEIC are allowed.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, extractResponse{Error: "Error reading file. Please try again."})
		return
	}

	slog.Info("Processing receipt", "filename", header.Filename, "size", len(data))

	result, err := s.service.ExtractExpense(r.Context(), data)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, extractResponse{Error: err.Error()})
		return
	}

	slog.Info("Extraction successful", "merchant", result.Merchant, "amount", result.Amount, "date", result.Date)
	writeJSON(w, http.StatusOK, extractResponse{Success: true, Data: result})
}

// contentTypeFromExt derives a MIME type from the filename extension when
// the part header carries none
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// handleHealth reports service liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.config.Environment,
	})
}

// handleListExpenses returns all expenses, newest first
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.service.ListExpenses()
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	// Always an array, never null
	if expenses == nil {
		expenses = []Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// handleCreateExpense persists an extracted record at the head of the collection
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var data extraction.ExpenseData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	expense, err := s.service.CreateExpense(data)
	if err != nil {
		slog.Error("Error saving expense", "error", err)
		msg := "Error saving expense"
		if errors.Is(err, ErrStorageFull) {
			msg = "Storage quota exceeded. Please delete some expenses."
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// handleDeleteExpense removes one expense by id
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Expense ID required"})
		return
	}
	if err := s.service.DeleteExpense(id); err != nil {
		slog.Error("Error deleting expense", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error deleting expense"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleClearExpenses removes the entire collection
func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearExpenses(); err != nil {
		slog.Error("Error clearing expenses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error clearing expenses"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleIndex serves the embedded frontend in production; elsewhere it
// returns the API descriptor the dev setup expects
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.config.Environment == "production" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Expense tracker API is running",
		"environment": s.config.Environment,
		"endpoints": map[string]string{
			"health":   "/api/health",
			"extract":  "/api/extract (POST)",
			"expenses": "/api/expenses",
		},
	})
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
