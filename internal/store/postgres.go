package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/videoseek/pkg/models"
)

// PostgresStore keeps chunks in a pgvector-enabled Postgres database. It is
// the backend for deployments where the index should outlive a single host.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given database URL.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: p}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Migrate applies the schema for the given embedding dimension.
func (s *PostgresStore) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS video_chunks (
  chunk_index BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  video_path  TEXT NOT NULL,
  start_time  DOUBLE PRECISION NOT NULL,
  end_time    DOUBLE PRECISION NOT NULL,
  content     TEXT NOT NULL,
  embedding   vector(%d) NOT NULL,
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS video_chunks_video_idx
  ON video_chunks (video_path);

CREATE INDEX IF NOT EXISTS video_chunks_embedding_idx
  ON video_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// AddChunks inserts all rows in one transaction so a failure leaves the
// store unchanged. Vectors are normalized before insert; chunk indices are
// assigned by the database and returned in input order.
func (s *PostgresStore) AddChunks(ctx context.Context, vectors [][]float32, entries []models.IndexEntry) ([]models.IndexEntry, error) {
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("store: %d vectors, %d entries", len(vectors), len(entries))
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO video_chunks (video_path, start_time, end_time, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING chunk_index`

	added := make([]models.IndexEntry, len(entries))
	for i, e := range entries {
		vec := pgvector.NewVector(normalize(vectors[i]))
		var chunkIndex int64
		if err := tx.QueryRow(ctx, q, e.VideoPath, e.Start, e.End, e.Text, vec).Scan(&chunkIndex); err != nil {
			return nil, fmt.Errorf("insert chunk for %s: %w", e.VideoPath, err)
		}
		e.ChunkIndex = int(chunkIndex)
		added[i] = e
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return added, nil
}

// Search ranks by cosine similarity. The video filter, when set, is applied
// natively against the path's base filename.
func (s *PostgresStore) Search(ctx context.Context, queryVec []float32, k int, opt QueryOpts) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	qv := pgvector.NewVector(normalize(queryVec))

	q := `
		SELECT chunk_index, video_path, start_time, end_time, content,
		       1 - (embedding <=> $1) AS score
		FROM video_chunks`
	args := []any{qv}
	if opt.Video != "" {
		q += ` WHERE regexp_replace(video_path, '^.*/', '') = $2`
		args = append(args, opt.Video)
	}
	q += fmt.Sprintf(` ORDER BY score DESC, chunk_index ASC LIMIT %d`, k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var e models.IndexEntry
		var chunkIndex int64
		var score float64
		if err := rows.Scan(&chunkIndex, &e.VideoPath, &e.Start, &e.End, &e.Text, &score); err != nil {
			return nil, err
		}
		e.ChunkIndex = int(chunkIndex)
		out = append(out, models.SearchResult{Entry: e, Score: score})
	}
	return out, rows.Err()
}

// GetVideos returns the distinct indexed video paths.
func (s *PostgresStore) GetVideos(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT video_path FROM video_chunks ORDER BY video_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM video_chunks`).Scan(&n)
	return n, err
}

// Ping checks the database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
