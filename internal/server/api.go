package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/store"
)

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure reports a failed write; POST responses carry success:false.
func writeFailure(w http.ResponseWriter, status int, msg string, err error) {
	f := false
	resp := errorResponse{Error: msg, Success: &f}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func etag(version string) string {
	return `"` + version + `"`
}

// parseETag strips quotes and a weak prefix from an If-Match value.
func parseETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	doc, version, err := s.store.ReadVersion(r.Context())
	if err != nil {
		s.logger.Printf("Error reading data: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to read data",
			Details: err.Error(),
		})
		return
	}

	w.Header().Set("ETag", etag(version))
	w.Header().Set("Cache-Control", "no-store")
	if match := r.Header.Get("If-None-Match"); match != "" && parseETag(match) == version {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := schema.Marshal(doc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to read data", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "Document too large", err)
			return
		}
		writeFailure(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	doc, err := schema.Parse(body)
	if err != nil {
		s.logger.Printf("Rejected document: %v", err)
		writeFailure(w, http.StatusBadRequest, "Invalid data format", err)
		return
	}

	ifMatch := parseETag(r.Header.Get("If-Match"))
	if ifMatch == "*" {
		ifMatch = ""
	}
	version, err := s.store.WriteIfVersion(r.Context(), doc, ifMatch)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		writeFailure(w, http.StatusConflict, "Document changed since it was read", err)
		return
	case schema.IsValidationError(err):
		writeFailure(w, http.StatusBadRequest, "Invalid data format", err)
		return
	default:
		s.logger.Printf("Error saving data: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Failed to save data: "+err.Error(), nil)
		return
	}

	s.logger.Printf("Data saved successfully (version %.12s)", version)
	s.publish(doc, version)

	w.Header().Set("ETag", etag(version))
	writeJSON(w, http.StatusOK, successResponse{Success: true, Version: version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}
