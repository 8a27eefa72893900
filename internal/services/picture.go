package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"picquest/internal/media"
	"picquest/internal/models"
	"picquest/internal/storage"
	"picquest/internal/store"
)

var (
	ErrEmptyQuery      = errors.New("search query must not be empty")
	ErrEmptyUpload     = errors.New("no file was uploaded")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image format")
	ErrBatchLimit      = errors.New("too many files in one batch")
)

const DefaultSimilarityThreshold = 0.36

type Options struct {
	ThumbnailWidth   int
	MaxUploadBytes   int64
	MaxBatchFiles    int
	Dimensions       int // expected embedding length; 0 accepts any
	DefaultPageSize  int
	MaxPageSize      int
	DefaultThreshold float64
}

func (o *Options) setDefaults() {
	if o.ThumbnailWidth <= 0 {
		o.ThumbnailWidth = 500
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = models.DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = models.MaxPageSize
	}
	if o.DefaultThreshold == 0 {
		o.DefaultThreshold = DefaultSimilarityThreshold
	}
}

// OnCreated is called after a picture has been persisted.
type OnCreated func(view models.PictureView)

type PictureService struct {
	store    store.PictureStore
	files    storage.Store
	vision   VisionDescriber
	embedder Embedder
	opts     Options
	now      func() time.Time

	mu    sync.RWMutex
	hooks []OnCreated
}

func NewPictureService(st store.PictureStore, files storage.Store, vision VisionDescriber, embedder Embedder, opts Options) *PictureService {
	opts.setDefaults()
	return &PictureService{
		store:    st,
		files:    files,
		vision:   vision,
		embedder: embedder,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *PictureService) OnCreated(fn OnCreated) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Upload is one file as received. Its content type is derived from the
// filename extension since the thumbnail is re-encoded in that format.
type Upload struct {
	Filename string
	Data     []byte
}

// Upload runs the pipeline store original -> thumbnail -> describe -> embed -> persist.
// Storage and database failures abort the upload and remove the files written
// so far. Vision and embedding failures only degrade the record.
func (s *PictureService) Upload(ctx context.Context, u Upload) (models.PictureView, error) {
	if len(u.Data) == 0 {
		return models.PictureView{}, ErrEmptyUpload
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(u.Data)) > s.opts.MaxUploadBytes {
		return models.PictureView{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, u.Filename, len(u.Data), s.opts.MaxUploadBytes)
	}
	if !media.IsSupported(u.Filename) {
		return models.PictureView{}, fmt.Errorf("%w: %s", ErrUnsupportedType, u.Filename)
	}

	now := s.now().UTC()
	keys := storage.NewKeys(u.Filename, now)
	contentType := media.ContentType(u.Filename)
	logger := slog.With("filename", u.Filename, "key", keys.Original)

	path, err := s.files.Save(ctx, keys.Original, u.Data, contentType)
	if err != nil {
		return models.PictureView{}, fmt.Errorf("store original: %w", err)
	}
	written := []string{keys.Original}

	thumb, err := media.Thumbnail(u.Data, u.Filename, s.opts.ThumbnailWidth)
	if err != nil {
		s.cleanup(ctx, written)
		return models.PictureView{}, fmt.Errorf("thumbnail: %w", err)
	}
	thumbPath, err := s.files.Save(ctx, keys.Thumbnail, thumb, contentType)
	if err != nil {
		s.cleanup(ctx, written)
		return models.PictureView{}, fmt.Errorf("store thumbnail: %w", err)
	}
	written = append(written, keys.Thumbnail)

	aiTitle, aiDescription := s.describe(ctx, thumb, contentType)
	title, description := resolveText(aiTitle, aiDescription, u.Filename, now)

	embedding := s.embed(ctx, title+". "+description)
	if len(embedding) == 0 {
		logger.Warn("picture stored without embedding")
	}

	pic := &models.Picture{
		Name:          title,
		Description:   description,
		Path:          path,
		ThumbnailPath: thumbPath,
		Embedding:     embedding,
		TakenAt:       media.TakenAt(u.Data),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, pic); err != nil {
		s.cleanup(ctx, written)
		return models.PictureView{}, fmt.Errorf("save picture: %w", err)
	}

	view := pic.View()
	logger.Info("picture uploaded", "id", view.ID, "name", view.Name, "embedded", len(embedding) > 0)
	s.notify(view)
	return view, nil
}

func (s *PictureService) List(ctx context.Context, page, pageSize int) (models.PaginatedResult[models.PictureView], error) {
	paging := models.NewPaging(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	res, err := s.store.List(ctx, paging)
	if err != nil {
		return res, fmt.Errorf("list pictures: %w", err)
	}
	return res, nil
}

type SearchQuery struct {
	Text      string
	Page      int
	PageSize  int
	Threshold *float64 // nil uses the configured default
}

// Search embeds the query text and returns the requested page of pictures whose
// similarity reaches the threshold. A failed query embedding yields no results.
func (s *PictureService) Search(ctx context.Context, q SearchQuery) (models.PaginatedResult[models.SearchHit], error) {
	paging := models.NewPaging(q.Page, q.PageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return models.EmptyPage[models.SearchHit](paging), ErrEmptyQuery
	}
	threshold := s.opts.DefaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	vec := s.embed(ctx, text)
	if len(vec) == 0 {
		return models.EmptyPage[models.SearchHit](paging), nil
	}

	res, err := s.store.SearchByVector(ctx, vec, threshold, paging)
	if err != nil {
		return res, fmt.Errorf("search pictures: %w", err)
	}
	slog.DebugContext(ctx, "search", "query", text, "threshold", threshold, "total", res.TotalCount)
	return res, nil
}

func (s *PictureService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *PictureService) describe(ctx context.Context, image []byte, contentType string) (string, string) {
	title, description, err := s.vision.Describe(ctx, image, contentType)
	if err != nil {
		slog.WarnContext(ctx, "vision describe failed, using fallback text", "error", err)
		return PlaceholderTitle, PlaceholderDescription
	}
	return title, description
}

// embed never fails: errors, empty or all-zero vectors and vectors of the wrong
// length all come back as nil. A zero vector has no direction, so pgvector would
// report NaN distances for it.
func (s *PictureService) embed(ctx context.Context, text string) []float32 {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "embedding failed", "error", err)
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	if s.opts.Dimensions > 0 && len(vec) != s.opts.Dimensions {
		slog.WarnContext(ctx, "embedding has unexpected dimensions", "got", len(vec), "want", s.opts.Dimensions)
		return nil
	}
	if isZeroVector(vec) {
		slog.WarnContext(ctx, "embedding is a zero vector")
		return nil
	}
	return vec
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func (s *PictureService) cleanup(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil {
			slog.Error("cleanup after failed upload", "key", key, "error", err)
		}
	}
}

func (s *PictureService) notify(view models.PictureView) {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(view)
	}
}

func resolveText(aiTitle, aiDescription, filename string, now time.Time) (string, string) {
	title := strings.TrimSpace(aiTitle)
	if title == "" || title == PlaceholderTitle {
		title = media.Stem(filename)
		if title == "" {
			title = "untitled"
		}
	}
	description := strings.TrimSpace(aiDescription)
	if description == "" || description == PlaceholderDescription {
		description = "Uploaded on " + now.Format(time.RFC3339)
	}
	return title, description
}
