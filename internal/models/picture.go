package models

import (
	"time"
)

type Picture struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Description   string     `db:"description" json:"description"`
	Path          string     `db:"path" json:"path"`
	ThumbnailPath string     `db:"thumbnail_path" json:"thumbnailPath"`
	Embedding     []float32  `db:"embedding" json:"-"`
	TakenAt       *time.Time `db:"taken_at" json:"takenAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// PictureView is the API projection of a Picture. It never carries the embedding.
type PictureView struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Path          string     `json:"path"`
	ThumbnailPath string     `json:"thumbnailPath"`
	TakenAt       *time.Time `json:"takenAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type SearchHit struct {
	PictureView
	Similarity float64 `json:"similarity"`
}

func (p *Picture) View() PictureView {
	return PictureView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Path:          p.Path,
		ThumbnailPath: p.ThumbnailPath,
		TakenAt:       p.TakenAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// HasEmbedding reports whether the picture takes part in similarity search.
func (p *Picture) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
