package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/models"
)

// VectorStore persists face points in Postgres with pgvector. Each
// collection is its own table with a cosine index, mirroring the
// collection concept of dedicated vector databases.
type VectorStore struct {
	pool *pgxpool.Pool
}

func NewVectorStore(cfg config.DatabaseConfig) (*VectorStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &VectorStore{pool: pool}, nil
}

func (s *VectorStore) Close() {
	s.pool.Close()
}

func (s *VectorStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// ValidateCollectionName rejects names that cannot be used as SQL
// identifiers. Collection names come from request payloads.
func ValidateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// EnsureCollection creates the collection table and its indexes if they
// do not exist. It is idempotent and safe under concurrent first-time
// creation: the duplicate-object races CREATE IF NOT EXISTS can still
// lose are treated as success.
func (s *VectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	table := pgx.Identifier{name}.Sanitize()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			group_id TEXT NOT NULL,
			image_path TEXT NOT NULL,
			face_index INT NOT NULL,
			detection_confidence REAL NOT NULL,
			facial_area JSONB NOT NULL,
			thumbnail_path TEXT,
			person_id TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (group_id)`,
			pgx.Identifier{name + "_group_idx"}.Sanitize(), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops)`,
			pgx.Identifier{name + "_embedding_idx"}.Sanitize(), table),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// UpsertPoints writes face points, replacing payload and vector on id
// collision.
func (s *VectorStore) UpsertPoints(ctx context.Context, collection string, points []models.FacePoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	table := pgx.Identifier{collection}.Sanitize()

	batch := &pgx.Batch{}
	for _, p := range points {
		area, err := json.Marshal(p.FacialArea)
		if err != nil {
			return fmt.Errorf("marshal facial area: %w", err)
		}
		var thumb *string
		if p.ThumbnailPath != "" {
			thumb = &p.ThumbnailPath
		}
		var person *string
		if p.PersonID != "" {
			person = &p.PersonID
		}
		batch.Queue(fmt.Sprintf(`INSERT INTO %s
			(id, embedding, group_id, image_path, face_index, detection_confidence, facial_area, thumbnail_path, person_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				image_path = EXCLUDED.image_path,
				face_index = EXCLUDED.face_index,
				detection_confidence = EXCLUDED.detection_confidence,
				facial_area = EXCLUDED.facial_area,
				thumbnail_path = EXCLUDED.thumbnail_path,
				created_at = EXCLUDED.created_at`, table),
			p.ID, pgvector.NewVector(p.Embedding), p.GroupID, p.ImagePath,
			p.FaceIndex, p.DetectionConfidence, area, thumb, person, p.Timestamp)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}
	return nil
}

// ScrollGroup pages through all points of a group in id order. Pass the
// last id of the previous page as afterID; nil starts from the beginning.
func (s *VectorStore) ScrollGroup(ctx context.Context, collection, groupID string, limit int, afterID *uuid.UUID) ([]models.FacePoint, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	table := pgx.Identifier{collection}.Sanitize()

	query := fmt.Sprintf(`SELECT id, embedding, group_id, image_path, face_index, detection_confidence, facial_area, thumbnail_path, person_id, created_at
		FROM %s WHERE group_id = $1`, table)
	args := []interface{}{groupID}
	if afterID != nil {
		query += ` AND id > $2 ORDER BY id LIMIT $3`
		args = append(args, *afterID, limit)
	} else {
		query += ` ORDER BY id LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scroll group %s: %w", groupID, err)
	}
	defer rows.Close()

	var points []models.FacePoint
	for rows.Next() {
		var (
			p      models.FacePoint
			vec    pgvector.Vector
			area   []byte
			thumb  *string
			person *string
		)
		if err := rows.Scan(&p.ID, &vec, &p.GroupID, &p.ImagePath, &p.FaceIndex,
			&p.DetectionConfidence, &area, &thumb, &person, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Embedding = vec.Slice()
		if err := json.Unmarshal(area, &p.FacialArea); err != nil {
			return nil, fmt.Errorf("unmarshal facial area: %w", err)
		}
		if thumb != nil {
			p.ThumbnailPath = *thumb
		}
		if person != nil {
			p.PersonID = *person
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PatchPersonID overwrites person_id on the given points in one statement.
func (s *VectorStore) PatchPersonID(ctx context.Context, collection string, ids []uuid.UUID, personID string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	table := pgx.Identifier{collection}.Sanitize()

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET person_id = $1 WHERE id = ANY($2)`, table),
		personID, ids)
	if err != nil {
		return fmt.Errorf("patch person_id: %w", err)
	}
	return nil
}

// SearchMatch is one similarity search hit.
type SearchMatch struct {
	PointID             uuid.UUID         `json:"point_id"`
	Score               float32           `json:"similarity_score"`
	ImagePath           string            `json:"image_path"`
	PersonID            string            `json:"person_id,omitempty"`
	DetectionConfidence float32           `json:"detection_confidence"`
	FacialArea          models.FacialArea `json:"facial_area"`
}

// SearchSimilar returns the closest points above the similarity floor,
// optionally restricted to one group.
func (s *VectorStore) SearchSimilar(ctx context.Context, collection string, embedding []float32, groupID string, minSimilarity float64, limit int) ([]SearchMatch, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	table := pgx.Identifier{collection}.Sanitize()
	vec := pgvector.NewVector(embedding)

	var query string
	var args []interface{}
	if groupID != "" {
		query = fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score, image_path, person_id, detection_confidence, facial_area
			FROM %s
			WHERE group_id = $2 AND 1 - (embedding <=> $1) >= $3
			ORDER BY embedding <=> $1
			LIMIT $4`, table)
		args = []interface{}{vec, groupID, minSimilarity, limit}
	} else {
		query = fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score, image_path, person_id, detection_confidence, facial_area
			FROM %s
			WHERE 1 - (embedding <=> $1) >= $2
			ORDER BY embedding <=> $1
			LIMIT $3`, table)
		args = []interface{}{vec, minSimilarity, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var matches []SearchMatch
	for rows.Next() {
		var (
			m      SearchMatch
			person *string
			area   []byte
		)
		if err := rows.Scan(&m.PointID, &m.Score, &m.ImagePath, &person, &m.DetectionConfidence, &area); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if person != nil {
			m.PersonID = *person
		}
		if err := json.Unmarshal(area, &m.FacialArea); err != nil {
			return nil, fmt.Errorf("unmarshal facial area: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
