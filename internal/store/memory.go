package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"picquest/internal/models"
)

// MemoryStore keeps pictures in process memory. It is used for tests and when
// no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	pictures []models.Picture
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(ctx context.Context, p *models.Picture) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	stored := *p
	stored.Embedding = slices.Clone(p.Embedding)
	s.pictures = append(s.pictures, stored)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, page models.Paging) (models.PaginatedResult[models.PictureView], error) {
	if err := ctx.Err(); err != nil {
		return models.PaginatedResult[models.PictureView]{}, err
	}
	s.mu.RLock()
	views := make([]models.PictureView, 0, len(s.pictures))
	for i := range s.pictures {
		views = append(views, s.pictures[i].View())
	}
	s.mu.RUnlock()

	slices.SortFunc(views, func(a, b models.PictureView) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return models.Paginate(views, page), nil
}

func (s *MemoryStore) SearchByVector(ctx context.Context, query []float32, threshold float64, page models.Paging) (models.PaginatedResult[models.SearchHit], error) {
	if err := ctx.Err(); err != nil {
		return models.PaginatedResult[models.SearchHit]{}, err
	}
	if len(query) == 0 {
		return models.EmptyPage[models.SearchHit](page), nil
	}

	s.mu.RLock()
	var hits []models.SearchHit
	for i := range s.pictures {
		p := &s.pictures[i]
		if !p.HasEmbedding() {
			continue
		}
		sim, err := CosineSimilarity(p.Embedding, query)
		if err != nil {
			// dimension mismatch or zero vector: the row cannot match
			continue
		}
		if sim < threshold {
			continue
		}
		hits = append(hits, models.SearchHit{PictureView: p.View(), Similarity: sim})
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b models.SearchHit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return models.Paginate(hits, page), nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pictures), nil
}

func (s *MemoryStore) Close() {}
