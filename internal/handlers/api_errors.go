package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"picquest/internal/services"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps service sentinel errors to client errors. Anything
// else is logged and reported as a 500 without leaking its text.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		WriteAPIError(w, http.StatusBadRequest, "empty_query", err.Error())
	case errors.Is(err, services.ErrEmptyUpload):
		WriteAPIError(w, http.StatusBadRequest, "empty_file", err.Error())
	case errors.Is(err, services.ErrBatchLimit):
		WriteAPIError(w, http.StatusBadRequest, "too_many_files", err.Error())
	case errors.Is(err, services.ErrTooLarge):
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	case errors.Is(err, services.ErrUnsupportedType):
		WriteAPIError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
