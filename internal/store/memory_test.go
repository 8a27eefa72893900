package store

import (
	"context"
	"math"
	"testing"
	"time"

	"picquest/internal/models"
)

// unit returns a 2-d unit vector at angle deg; its similarity to (1,0) is cos(deg).
func unit(deg float64) []float32 {
	rad := deg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func seed(t *testing.T, s PictureStore, embeddings ...[]float32) []models.Picture {
	t.Helper()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Picture, 0, len(embeddings))
	for i, emb := range embeddings {
		p := models.Picture{
			Name:          "pic",
			Description:   "desc",
			Path:          "/uploads/2026/10/a.jpg",
			ThumbnailPath: "/uploads/2026/10/a_thumb.jpg",
			Embedding:     emb,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Insert(context.Background(), &p); err != nil {
			t.Fatalf("insert: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestMemoryStoreInsertAssignsMonotonicIDs(t *testing.T) {
	s := NewMemoryStore()
	pics := seed(t, s, nil, nil, nil)
	for i, p := range pics {
		if p.ID != int64(i+1) {
			t.Fatalf("picture %d has id %d", i, p.ID)
		}
		if p.UpdatedAt != p.CreatedAt {
			t.Fatalf("updatedAt should equal createdAt on insert")
		}
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, nil, unit(0), nil, unit(10), nil)

	res, err := s.List(context.Background(), models.NewPaging(1, 2, 8, 100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.TotalCount != 5 {
		t.Fatalf("total = %d", res.TotalCount)
	}
	if len(res.Items) != 2 || res.Items[0].ID != 5 || res.Items[1].ID != 4 {
		t.Fatalf("unexpected first page %+v", res.Items)
	}

	res, err = s.List(context.Background(), models.NewPaging(3, 2, 8, 100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != 1 {
		t.Fatalf("unexpected last page %+v", res.Items)
	}
}

func TestMemoryStoreSearchThresholdBeforePagination(t *testing.T) {
	s := NewMemoryStore()
	// similarities to (1,0): 1.0, 0.94, 0.5, 0.17, -1
	seed(t, s, unit(0), unit(20), unit(60), unit(80), unit(180))
	query := []float32{1, 0}

	for size := 1; size <= 4; size++ {
		for page := 1; page <= 4; page++ {
			res, err := s.SearchByVector(context.Background(), query, 0.36, models.NewPaging(page, size, 8, 100))
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if res.TotalCount != 3 {
				t.Fatalf("page=%d size=%d: total = %d, want 3", page, size, res.TotalCount)
			}
			want := min(size, max(0, 3-(page-1)*size))
			if len(res.Items) != want {
				t.Fatalf("page=%d size=%d: %d items, want %d", page, size, len(res.Items), want)
			}
			for _, h := range res.Items {
				if h.Similarity < 0.36 {
					t.Fatalf("hit %d below threshold: %v", h.ID, h.Similarity)
				}
			}
		}
	}
}

func TestMemoryStoreSearchOrdersBySimilarityThenNewest(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, unit(30), unit(0), unit(30), unit(5))

	res, err := s.SearchByVector(context.Background(), []float32{1, 0}, 0, models.NewPaging(1, 10, 8, 100))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	gotIDs := make([]int64, 0, len(res.Items))
	for i, h := range res.Items {
		gotIDs = append(gotIDs, h.ID)
		if i > 0 && res.Items[i-1].Similarity < h.Similarity {
			t.Fatalf("results not ordered by similarity: %+v", res.Items)
		}
	}
	want := []int64{2, 4, 3, 1}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotIDs, want)
		}
	}
}

func TestMemoryStoreSearchSkipsPicturesWithoutEmbedding(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, nil, []float32{}, unit(0), []float32{1, 0, 0})

	res, err := s.SearchByVector(context.Background(), []float32{1, 0}, -1, models.NewPaging(1, 10, 8, 100))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalCount != 1 || res.Items[0].ID != 3 {
		t.Fatalf("expected only picture 3, got %+v", res)
	}
}

func TestMemoryStoreSearchEmptyQuery(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, unit(0))

	res, err := s.SearchByVector(context.Background(), nil, 0, models.NewPaging(1, 8, 8, 100))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalCount != 0 || len(res.Items) != 0 {
		t.Fatalf("expected no results, got %+v", res)
	}
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 2})
	if err != nil || math.Abs(sim) > 1e-9 {
		t.Fatalf("orthogonal: %v %v", sim, err)
	}
	sim, err = CosineSimilarity([]float32{1, 1}, []float32{2, 2})
	if err != nil || math.Abs(sim-1) > 1e-6 {
		t.Fatalf("parallel: %v %v", sim, err)
	}
	if _, err := CosineSimilarity([]float32{1}, []float32{1, 2}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); err == nil {
		t.Fatal("expected zero-magnitude error")
	}
}

func TestMemoryStoreHugePageIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, unit(0), unit(10))
	ctx := context.Background()
	page := models.NewPaging(math.MaxInt64, 8, 8, 100)

	list, err := s.List(ctx, page)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 0 || list.TotalCount != 2 {
		t.Fatalf("list = %+v", list)
	}

	hits, err := s.SearchByVector(ctx, unit(0), -1, page)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits.Items) != 0 || hits.TotalCount != 2 {
		t.Fatalf("search = %+v", hits)
	}
}
