package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// Schema is the DDL PostgresStore expects. Categories are tags without a
// master tag. Proposed tags are rows with is_validated = false.
const Schema = `
CREATE TABLE IF NOT EXISTS images (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL DEFAULT '',
	image_data     BYTEA,
	mime_type      TEXT NOT NULL DEFAULT '',
	width          INTEGER NOT NULL DEFAULT 0,
	height         INTEGER NOT NULL DEFAULT 0,
	aspect_ratio   TEXT NOT NULL DEFAULT '',
	description    TEXT,
	reference_json JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tags (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title                 TEXT NOT NULL,
	master_tag_id         TEXT REFERENCES tags(id),
	is_mandatory_category BOOLEAN NOT NULL DEFAULT false,
	is_validated          BOOLEAN NOT NULL DEFAULT true,
	reasoning             TEXT,
	proposed_for_image    TEXT REFERENCES images(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS image_tags (
	image_id   TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	tag_id     TEXT NOT NULL REFERENCES tags(id),
	confidence DOUBLE PRECISION,
	PRIMARY KEY (image_id, tag_id)
);
`

// PostgresStore keeps the library in PostgreSQL, image bytes included.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Library = (*PostgresStore)(nil)

// NewPostgresPool opens a pgx pool for databaseURL.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore returns a store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates missing tables.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT reference_json FROM images WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query descriptor: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("descriptor of template %s: %w", id, ErrNotFound)
	}
	return descriptor.Parse(raw)
}

func (s *PostgresStore) GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error) {
	var img filehandler.Image
	err := s.pool.QueryRow(ctx, `SELECT image_data, mime_type FROM images WHERE id = $1`, id).
		Scan(&img.Data, &img.MIMEType)
	if errors.Is(err, pgx.ErrNoRows) {
		return filehandler.Image{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return filehandler.Image{}, fmt.Errorf("query image: %w", err)
	}
	if img.IsZero() {
		return filehandler.Image{}, fmt.Errorf("image of template %s: %w", id, ErrNotFound)
	}
	if img.MIMEType == "" {
		img.MIMEType = filehandler.DetectMIMEType(img.Data)
	}
	return img, nil
}

func (s *PostgresStore) PutTemplate(ctx context.Context, t *Template) error {
	var refJSON []byte
	if t.Descriptor != nil {
		var err error
		if refJSON, err = t.Descriptor.Marshal(); err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var imageData []byte
	if !t.Image.IsZero() {
		imageData = t.Image.Data
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO images (id, source, image_data, mime_type, width, height, aspect_ratio, description, reference_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
ON CONFLICT (id) DO UPDATE SET
	source = EXCLUDED.source,
	image_data = COALESCE(EXCLUDED.image_data, images.image_data),
	mime_type = EXCLUDED.mime_type,
	width = EXCLUDED.width,
	height = EXCLUDED.height,
	aspect_ratio = EXCLUDED.aspect_ratio,
	description = EXCLUDED.description,
	reference_json = EXCLUDED.reference_json;
`, t.ID, t.Source, imageData, t.Image.MIMEType, t.Width, t.Height, t.AspectRatio, t.Description, refJSON, createdAt)
	if err != nil {
		return fmt.Errorf("insert template %s: %w", t.ID, err)
	}
	log.Debug().Str("templateId", t.ID).Bool("hasDescriptor", refJSON != nil).Msg("Template stored in Postgres")
	return nil
}

// ListTags returns validated tags grouped under their master tags.
func (s *PostgresStore) ListTags(ctx context.Context) (taxonomy.Taxonomy, error) {
	rows, err := s.pool.Query(ctx, `
SELECT t.id, t.title, COALESCE(t.master_tag_id, ''), t.is_mandatory_category
FROM tags t
WHERE t.is_validated
ORDER BY t.title ASC;
`)
	if err != nil {
		return taxonomy.Taxonomy{}, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	type row struct {
		id, title, master string
		mandatory         bool
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.title, &r.master, &r.mandatory); err != nil {
			return taxonomy.Taxonomy{}, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return taxonomy.Taxonomy{}, err
	}

	index := map[string]int{}
	var categories []taxonomy.Category
	for _, r := range all {
		if r.master == "" {
			index[r.id] = len(categories)
			categories = append(categories, taxonomy.Category{ID: r.id, Title: r.title, Mandatory: r.mandatory})
		}
	}
	for _, r := range all {
		if i, ok := index[r.master]; ok {
			categories[i].Tags = append(categories[i].Tags, taxonomy.Tag{ID: r.id, Title: r.title})
		}
	}
	return taxonomy.New(categories), nil
}

func (s *PostgresStore) PutImageTags(ctx context.Context, templateID string, tags []ImageTag) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM image_tags WHERE image_id = $1`, templateID); err != nil {
			return fmt.Errorf("clear image tags: %w", err)
		}
		if len(tags) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, tag := range tags {
			batch.Queue(`INSERT INTO image_tags (image_id, tag_id, confidence) VALUES ($1, $2, $3)`,
				templateID, tag.TagID, tag.Confidence)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert image tags: %w", err)
		}
		return nil
	})
}

// PutProposedTags inserts each proposal as an unvalidated tag. A failed
// proposal is logged and skipped.
func (s *PostgresStore) PutProposedTags(ctx context.Context, templateID string, tags []ProposedTag) error {
	for _, p := range tags {
		_, err := s.pool.Exec(ctx, `
INSERT INTO tags (title, master_tag_id, is_validated, reasoning, proposed_for_image)
VALUES ($1, $2, false, NULLIF($3, ''), $4);
`, p.Name, p.ParentTagID, p.Reasoning, templateID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				log.Warn().Str("code", pgErr.Code).Str("tag", p.Name).Msg("Failed to store proposed tag")
				continue
			}
			return fmt.Errorf("insert proposed tag %q: %w", p.Name, err)
		}
		log.Info().Str("tag", p.Name).Str("parentTagId", p.ParentTagID).Msg("Created unvalidated tag")
	}
	return nil
}
