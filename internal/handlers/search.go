package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"picquest/internal/services"
)

// Search serves GET /api/search?query=&page=&pageSize=&similarityThreshold=.
func (h *PictureHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		WriteAPIError(w, http.StatusBadRequest, "empty_query", "query parameter is required")
		return
	}

	var threshold *float64
	if raw := strings.TrimSpace(q.Get("similarityThreshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			WriteAPIError(w, http.StatusBadRequest, "invalid_threshold", "similarityThreshold must be a number")
			return
		}
		threshold = &v
	}

	page, pageSize := pagingParams(r)
	res, err := h.svc.Search(r.Context(), services.SearchQuery{
		Text:      query,
		Page:      page,
		PageSize:  pageSize,
		Threshold: threshold,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
