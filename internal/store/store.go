package store

import (
	"context"

	"picquest/internal/models"
)

// PictureStore persists pictures and ranks them against a query vector.
//
// SearchByVector only considers pictures with an embedding, keeps those whose
// cosine similarity to query is at least threshold, orders them by similarity
// descending (ties by id descending) and then cuts the requested page.
// TotalCount counts every picture that passed the threshold.
type PictureStore interface {
	Insert(ctx context.Context, p *models.Picture) error
	List(ctx context.Context, page models.Paging) (models.PaginatedResult[models.PictureView], error)
	SearchByVector(ctx context.Context, query []float32, threshold float64, page models.Paging) (models.PaginatedResult[models.SearchHit], error)
	Count(ctx context.Context) (int, error)
	Close()
}
