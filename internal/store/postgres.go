package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"picquest/internal/models"
)

const picturesTable = "pictures"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var viewColumns = []string{
	"id", "name", "description", "path", "thumbnail_path", "taken_at", "created_at", "updated_at",
}

type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPostgresStore(ctx context.Context, databaseURL string, dimensions int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresStore{pool: pool, dimensions: dimensions}, nil
}

// Migrate creates the vector extension, the pictures table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS pictures (
			id              BIGSERIAL PRIMARY KEY,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			path            TEXT NOT NULL,
			thumbnail_path  TEXT NOT NULL,
			embedding       vector(%d),
			taken_at        TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS pictures_created_at_idx
			ON pictures (created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS pictures_embedding_idx
			ON pictures USING hnsw (embedding vector_cosine_ops);
	`, s.dimensions))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, p *models.Picture) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	query, args, err := insertQuery(p).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("db insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, page models.Paging) (models.PaginatedResult[models.PictureView], error) {
	res := models.EmptyPage[models.PictureView](page)

	total, err := s.Count(ctx)
	if err != nil {
		return res, err
	}
	res.TotalCount = total
	if page.Offset() >= total {
		return res, nil
	}

	query, args, err := listQuery(page).ToSql()
	if err != nil {
		return res, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return res, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.PictureView
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.Path, &v.ThumbnailPath,
			&v.TakenAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return res, fmt.Errorf("scan: %w", err)
		}
		res.Items = append(res.Items, v)
	}
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) SearchByVector(ctx context.Context, query []float32, threshold float64, page models.Paging) (models.PaginatedResult[models.SearchHit], error) {
	res := models.EmptyPage[models.SearchHit](page)
	if len(query) == 0 {
		return res, nil
	}
	vec := pgvector.NewVector(query)

	countSQL, countArgs, err := searchCountQuery(vec, threshold).ToSql()
	if err != nil {
		return res, fmt.Errorf("build search count: %w", err)
	}
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("search count: %w", err)
	}
	if page.Offset() >= res.TotalCount {
		return res, nil
	}

	searchSQL, args, err := searchQuery(vec, threshold, page).ToSql()
	if err != nil {
		return res, fmt.Errorf("build search: %w", err)
	}
	rows, err := s.pool.Query(ctx, searchSQL, args...)
	if err != nil {
		return res, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	res.Items, err = scanHits(rows)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pictures").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func insertQuery(p *models.Picture) sq.InsertBuilder {
	var embedding any
	if p.HasEmbedding() {
		embedding = pgvector.NewVector(p.Embedding)
	}
	return psql.Insert(picturesTable).
		Columns("name", "description", "path", "thumbnail_path", "embedding", "taken_at", "created_at", "updated_at").
		Values(p.Name, p.Description, p.Path, p.ThumbnailPath, embedding, p.TakenAt, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING id")
}

func listQuery(page models.Paging) sq.SelectBuilder {
	return psql.Select(viewColumns...).
		From(picturesTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset()))
}

// matchPredicate keeps embedded rows at or above the threshold. It is shared by
// the count and the page query so totalCount always agrees with the pages.
func matchPredicate(vec pgvector.Vector, threshold float64) sq.And {
	return sq.And{
		sq.Expr("embedding IS NOT NULL"),
		sq.Expr("1 - (embedding <=> ?) >= ?", vec, threshold),
	}
}

func searchCountQuery(vec pgvector.Vector, threshold float64) sq.SelectBuilder {
	return psql.Select("COUNT(*)").
		From(picturesTable).
		Where(matchPredicate(vec, threshold))
}

func searchQuery(vec pgvector.Vector, threshold float64, page models.Paging) sq.SelectBuilder {
	return psql.Select(viewColumns...).
		Column(sq.Expr("1 - (embedding <=> ?) AS similarity", vec)).
		From(picturesTable).
		Where(matchPredicate(vec, threshold)).
		OrderBy("similarity DESC", "id DESC").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset()))
}

func scanHits(rows pgx.Rows) ([]models.SearchHit, error) {
	hits := []models.SearchHit{}
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Description, &h.Path, &h.ThumbnailPath,
			&h.TakenAt, &h.CreatedAt, &h.UpdatedAt, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return hits, nil
}
