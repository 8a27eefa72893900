package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"picquest/internal/models"
	"picquest/internal/services"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// Upload serves POST /api/upload with a single multipart field "file".
func (h *PictureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeFormError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("file")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_file", "failed to read uploaded file")
		return
	}

	view, err := h.svc.Upload(r.Context(), services.Upload{Filename: fh.Filename, Data: data})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type batchItem struct {
	Filename string              `json:"filename"`
	Picture  *models.PictureView `json:"picture,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// UploadBatch serves POST /api/upload/batch with the repeated multipart field
// "files". Files are processed in order and a failing file does not stop the rest.
func (h *PictureHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadBytes*int64(max(h.maxBatchFiles, 1)) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeFormError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_file", "multipart field \"files\" is required")
		return
	}
	if len(headers) > h.maxBatchFiles {
		writeServiceError(w, r, fmt.Errorf("%w: got %d, limit %d", services.ErrBatchLimit, len(headers), h.maxBatchFiles))
		return
	}

	entries := make([]services.BatchEntry, 0, len(headers))
	for _, fh := range headers {
		entries = append(entries, services.BatchEntry{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	resp := batchResponse{Items: make([]batchItem, 0, len(entries))}
	for _, res := range h.svc.UploadBatch(r.Context(), entries, nil) {
		item := batchItem{Filename: res.Filename, Picture: res.Picture}
		if res.Err != nil {
			item.Error = res.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Items = append(resp.Items, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "file_too_large", "request body too large")
	case errors.Is(err, multipart.ErrMessageTooLarge):
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "file_too_large", "multipart form too large")
	default:
		WriteAPIError(w, http.StatusBadRequest, "invalid_form", "invalid multipart form")
	}
}
