package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"picquest/internal/models"
	"picquest/internal/services"
	"picquest/internal/storage"
	"picquest/internal/store"
)

type stubVision struct{}

func (stubVision) Describe(ctx context.Context, image []byte, contentType string) (string, string, error) {
	return "Orange Tabby", "A cat on a windowsill.", nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestRouter(t *testing.T, maxUploadBytes int64) http.Handler {
	t.Helper()
	root := t.TempDir()
	files, err := storage.NewLocalStorage(root, "/uploads")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := services.NewPictureService(store.NewMemoryStore(), files, stubVision{}, stubEmbedder{}, services.Options{
		MaxUploadBytes: maxUploadBytes,
		MaxBatchFiles:  20,
	})
	return NewRouter(RouterConfig{
		Pictures:    NewPictureHandler(svc, maxUploadBytes, 20),
		UploadsDir:  root,
		CORSOrigins: []string{"*"},
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, x%20, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, url string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, status, rec.Body.String())
	}
	resp := decode[APIErrorResponse](t, rec)
	if len(resp.Errors) != 1 || resp.Errors[0].Code != code {
		t.Fatalf("errors = %+v, want code %s", resp.Errors, code)
	}
}

func TestUploadListAndServeFiles(t *testing.T) {
	h := newTestRouter(t, 1<<20)

	rec := serve(h, multipartRequest(t, "/api/upload", formFile{"file", "cat.png", pngBytes(t)}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[models.PictureView](t, rec)
	if view.ID == 0 || view.Name != "Orange Tabby" || view.Description != "A cat on a windowsill." {
		t.Fatalf("view = %+v", view)
	}

	for _, p := range []string{view.Path, view.ThumbnailPath} {
		rec = serve(h, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
			t.Fatalf("GET %s = %d", p, rec.Code)
		}
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/pictures?page=1&pageSize=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[models.PaginatedResult[models.PictureView]](t, rec)
	if list.TotalCount != 1 || list.PageSize != 5 || len(list.Items) != 1 || list.Items[0].ID != view.ID {
		t.Fatalf("list = %+v", list)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	health := decode[map[string]any](t, rec)
	if health["status"] != "ok" || health["pictures"] != float64(1) {
		t.Fatalf("health = %v", health)
	}
}

func TestUploadRejections(t *testing.T) {
	h := newTestRouter(t, 1024)

	rec := serve(h, multipartRequest(t, "/api/upload", formFile{"other", "cat.png", pngBytes(t)}))
	assertAPIError(t, rec, http.StatusBadRequest, "missing_file")

	rec = serve(h, multipartRequest(t, "/api/upload", formFile{"file", "cat.png", nil}))
	assertAPIError(t, rec, http.StatusBadRequest, "empty_file")

	rec = serve(h, multipartRequest(t, "/api/upload", formFile{"file", "notes.txt", []byte("hello")}))
	assertAPIError(t, rec, http.StatusUnsupportedMediaType, "unsupported_media_type")

	rec = serve(h, multipartRequest(t, "/api/upload", formFile{"file", "big.png", make([]byte, 4096)}))
	assertAPIError(t, rec, http.StatusRequestEntityTooLarge, "file_too_large")

	rec = serve(h, multipartRequest(t, "/api/upload", formFile{"file", "huge.png", make([]byte, 2<<20)}))
	assertAPIError(t, rec, http.StatusRequestEntityTooLarge, "file_too_large")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	assertAPIError(t, serve(h, req), http.StatusBadRequest, "invalid_form")
}

func TestUploadBatchReportsPerFileResults(t *testing.T) {
	h := newTestRouter(t, 1<<20)

	rec := serve(h, multipartRequest(t, "/api/upload/batch",
		formFile{"files", "a.png", pngBytes(t)},
		formFile{"files", "b.png", []byte("broken")},
		formFile{"files", "c.png", pngBytes(t)},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[batchResponse](t, rec)
	if resp.Succeeded != 2 || resp.Failed != 1 || len(resp.Items) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Items[1].Filename != "b.png" || resp.Items[1].Error == "" || resp.Items[1].Picture != nil {
		t.Fatalf("failed item = %+v", resp.Items[1])
	}
	if resp.Items[0].Picture == nil || resp.Items[2].Picture == nil {
		t.Fatal("successful items must carry the picture")
	}

	rec = serve(h, multipartRequest(t, "/api/upload/batch"))
	assertAPIError(t, rec, http.StatusBadRequest, "missing_file")
}

func TestSearch(t *testing.T) {
	h := newTestRouter(t, 1<<20)
	if rec := serve(h, multipartRequest(t, "/api/upload", formFile{"file", "cat.png", pngBytes(t)})); rec.Code != http.StatusCreated {
		t.Fatalf("seed upload = %d", rec.Code)
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&similarityThreshold=0.5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[models.PaginatedResult[models.SearchHit]](t, rec)
	if res.TotalCount != 1 || res.Items[0].Similarity < 0.99 || res.Page != 1 || res.PageSize != 8 {
		t.Fatalf("result = %+v", res)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/search?query=%20%20", nil))
	assertAPIError(t, rec, http.StatusBadRequest, "empty_query")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&similarityThreshold=high", nil))
	assertAPIError(t, rec, http.StatusBadRequest, "invalid_threshold")
}

func TestStaticFilesHidesDirectories(t *testing.T) {
	h := newTestRouter(t, 1<<20)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListHugePageReturnsEmptyPage(t *testing.T) {
	h := newTestRouter(t, 1<<20)
	if rec := serve(h, multipartRequest(t, "/api/upload", formFile{"file", "cat.png", pngBytes(t)})); rec.Code != http.StatusCreated {
		t.Fatalf("seed upload = %d", rec.Code)
	}

	for _, url := range []string{
		"/api/pictures?page=9223372036854775807",
		"/api/search?query=cat&page=9223372036854775807&pageSize=100",
	} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d: %s", url, rec.Code, rec.Body.String())
		}
		res := decode[models.PaginatedResult[models.PictureView]](t, rec)
		if len(res.Items) != 0 || res.TotalCount != 1 {
			t.Fatalf("GET %s = %+v", url, res)
		}
	}
}

func TestUploadBatchRejectsTooManyFiles(t *testing.T) {
	h := newTestRouter(t, 1<<20)

	files := make([]formFile, 21)
	for i := range files {
		files[i] = formFile{"files", "p.png", pngBytes(t)}
	}
	rec := serve(h, multipartRequest(t, "/api/upload/batch", files...))
	assertAPIError(t, rec, http.StatusBadRequest, "too_many_files")

	health := decode[map[string]any](t, serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	if health["pictures"] != float64(0) {
		t.Fatalf("rejected batch stored pictures: %v", health)
	}
}
