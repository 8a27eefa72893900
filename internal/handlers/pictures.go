package handlers

import (
	"net/http"
	"strconv"

	"picquest/internal/services"
)

type PictureHandler struct {
	svc            *services.PictureService
	maxUploadBytes int64
	maxBatchFiles  int
}

func NewPictureHandler(svc *services.PictureService, maxUploadBytes int64, maxBatchFiles int) *PictureHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	if maxBatchFiles <= 0 {
		maxBatchFiles = 20
	}
	return &PictureHandler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		maxBatchFiles:  maxBatchFiles,
	}
}

// List serves GET /api/pictures, newest first.
func (h *PictureHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagingParams(r)
	res, err := h.svc.List(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PictureHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Count(r.Context())
	if err != nil {
		WriteAPIError(w, http.StatusServiceUnavailable, "unavailable", "picture store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pictures": n})
}

// pagingParams reads page and pageSize. Missing or malformed values come back
// as 0 and are replaced with defaults by the service.
func pagingParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	return page, pageSize
}
