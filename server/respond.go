package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
)

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

type fileBody struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func toFileBody(f spartanfiles.FileInfo) fileBody {
	return fileBody{Name: f.Name, Size: f.Size, Modified: f.ModTime.UTC()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failure maps a repository error to a status and the message shown to the client.
// Anything unrecognised is a 500 with a generic message.
func failure(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, spartanfiles.ErrUnauthorized):
		return http.StatusUnauthorized, "Please log in to access this page."
	case errors.Is(err, spartanfiles.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password."
	case errors.Is(err, spartanfiles.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "Too many failed login attempts. Please try again later."
	case errors.Is(err, spartanfiles.ErrInvalidPath):
		return http.StatusBadRequest, "Invalid path."
	case errors.Is(err, spartanfiles.ErrDisallowedFileType):
		return http.StatusUnsupportedMediaType, "Invalid file type or no file uploaded."
	case errors.Is(err, spartanfiles.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "File too large."
	case errors.Is(err, spartanfiles.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, spartanfiles.ErrSessionCreationFailed),
		errors.Is(err, spartanfiles.ErrSessionInvalidationFailed):
		return http.StatusServiceUnavailable, "Session service unavailable. Please try again."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := failure(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// fileFailure is failure with the file-specific not-found wording.
func fileFailure(err error) (int, string) {
	if errors.Is(err, spartanfiles.ErrNotFound) {
		return http.StatusNotFound, "File not found."
	}
	return failure(err)
}

func (s *Server) failFile(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, spartanfiles.ErrNotFound) {
		status, msg := fileFailure(err)
		writeJSON(w, status, errorBody{Error: msg})
		return
	}
	s.fail(w, r, err)
}
