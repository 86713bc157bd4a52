package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/service"
	"github.com/templui/cutout/internal/validation"
)

// Result is the answer of every mutation endpoint.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// apiError is how a known error is shown to clients.
type apiError struct {
	target  error
	status  int
	message string
}

// knownErrors is checked in order with errors.Is. Anything else is a 500.
var knownErrors = []apiError{
	{service.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{service.ErrImageNotFound, http.StatusNotFound, "Image not found"},
	{repository.ErrImageNotFound, http.StatusNotFound, "Image not found"},
	{repository.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{service.ErrEmailInUse, http.StatusConflict, "Email is already in use by another account"},
	{service.ErrNoVerifiedAccount, http.StatusNotFound, "No verified account found with this email"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "Please provide a valid email address"},
	{service.ErrInvalidSession, http.StatusBadRequest, "Invalid session id"},
	{service.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired link"},
	{service.ErrInvalidStorageURL, http.StatusBadRequest, "Storage URL does not belong to this service"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{service.ErrEmailAlreadyExists, http.StatusConflict, "An account with this email already exists"},
	{service.ErrEmailNotVerified, http.StatusForbidden, "Please verify your email first"},
	{service.ErrPasswordless, http.StatusBadRequest, "This account uses passwordless login, use the magic link option"},
	{validation.ErrEmptyFile, http.StatusBadRequest, "File is empty"},
	{validation.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
	{validation.ErrNotPNG, http.StatusBadRequest, "Only PNG images are accepted"},
	{validation.ErrPasswordTooShort, http.StatusBadRequest, "Password must be at least 12 characters"},
	{validation.ErrPasswordTooLong, http.StatusBadRequest, "Password is too long"},
	{validation.ErrPasswordTooCommon, http.StatusBadRequest, "Password is too common, please choose a stronger one"},
}

// errInvalidRequest marks a body or form that could not be read.
var errInvalidRequest = errors.New("invalid request")

// classify maps err to a status and a message safe to show.
func classify(err error) (int, string) {
	if errors.Is(err, errInvalidRequest) {
		return http.StatusBadRequest, "Invalid request"
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "File too large"
	}

	for _, known := range knownErrors {
		if errors.Is(err, known.target) {
			return known.status, known.message
		}
	}

	return http.StatusInternalServerError, "Internal server error"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError answers a read or create endpoint that failed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	logFailure(r, status, err)
	writeJSON(w, status, errorResponse{Error: message})
}

// writeResult answers a mutation endpoint.
func writeResult(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, Result{Success: true})
		return
	}
	status, message := classify(err)
	logFailure(r, status, err)
	writeJSON(w, status, Result{Success: false, Error: message})
}

func logFailure(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		return
	}
	slog.Debug("request rejected", "error", err, "status", status, "path", r.URL.Path)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return errInvalidRequest
	}
	return nil
}
