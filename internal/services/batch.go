package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"picquest/internal/models"
)

type BatchEntry struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type BatchResult struct {
	Filename string
	Picture  *models.PictureView
	Err      error
}

// UploadBatch uploads entries one after another. A failing entry is recorded in
// its result and the batch moves on. progress, if set, sees every result in order.
func (s *PictureService) UploadBatch(ctx context.Context, entries []BatchEntry, progress func(i int, res BatchResult)) []BatchResult {
	results := make([]BatchResult, 0, len(entries))
	for i, entry := range entries {
		res := BatchResult{Filename: entry.Filename}

		switch {
		case s.opts.MaxBatchFiles > 0 && i >= s.opts.MaxBatchFiles:
			res.Err = ErrBatchLimit
		case ctx.Err() != nil:
			res.Err = ctx.Err()
		default:
			view, err := s.uploadEntry(ctx, entry)
			if err != nil {
				res.Err = err
			} else {
				res.Picture = &view
			}
		}

		if res.Err != nil {
			slog.WarnContext(ctx, "batch upload item failed", "index", i, "filename", entry.Filename, "error", res.Err)
		}
		results = append(results, res)
		if progress != nil {
			progress(i, res)
		}
	}
	return results
}

func (s *PictureService) uploadEntry(ctx context.Context, entry BatchEntry) (models.PictureView, error) {
	rc, err := entry.Open()
	if err != nil {
		return models.PictureView{}, fmt.Errorf("open %s: %w", entry.Filename, err)
	}
	defer rc.Close()

	data, err := s.readLimited(rc)
	if err != nil {
		return models.PictureView{}, fmt.Errorf("read %s: %w", entry.Filename, err)
	}
	return s.Upload(ctx, Upload{Filename: entry.Filename, Data: data})
}

func (s *PictureService) readLimited(r io.Reader) ([]byte, error) {
	if s.opts.MaxUploadBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
