// Package relstore implements file and chunk metadata storage against
// Postgres, including the ownership index, with to_regclass-gated
// bootstrap DDL.
package relstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragserver/internal/model"
	"ragserver/internal/ragerr"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open relational store pool: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) init(ctx context.Context) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('public.files') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("check files table: %w", err)
	}
	if !exists {
		_, err := p.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS files (
				file_id          TEXT PRIMARY KEY,
				owner_id         TEXT NOT NULL,
				filename         TEXT NOT NULL,
				content_type     TEXT NOT NULL,
				size_bytes       BIGINT NOT NULL,
				uploaded_at      TIMESTAMPTZ NOT NULL,
				chunk_count      INT NOT NULL DEFAULT 0,
				ingest_state     TEXT NOT NULL,
				vector_partition TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_files_owner_uploaded ON files (owner_id, uploaded_at DESC);
		`)
		if err != nil {
			return fmt.Errorf("create files table: %w", err)
		}
	}
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('public.chunks') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("check chunks table: %w", err)
	}
	if !exists {
		_, err := p.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS chunks (
				chunk_id             TEXT PRIMARY KEY,
				file_id               TEXT NOT NULL REFERENCES files(file_id) ON DELETE CASCADE,
				level                 INT NOT NULL,
				level_index           INT NOT NULL,
				parent_chunk_id       TEXT,
				content               TEXT NOT NULL,
				token_count_estimate  INT NOT NULL,
				vector_id             TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks (file_id, level, level_index);
		`)
		if err != nil {
			return fmt.Errorf("create chunks table: %w", err)
		}
	}
	return nil
}

func (p *Postgres) InsertFile(ctx context.Context, f model.File) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO files (file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, vector_partition)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (file_id) DO NOTHING
	`, f.FileID, f.OwnerID, f.Filename, f.ContentType, f.SizeBytes, f.UploadedAt, f.ChunkCount, f.IngestState, f.VectorPartition)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "insert file", err)
	}
	return nil
}

func (p *Postgres) UpdateFileState(ctx context.Context, fileID string, state model.IngestState, chunkCount int) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE files SET ingest_state = $2, chunk_count = $3 WHERE file_id = $1
	`, fileID, state, chunkCount)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "update file state", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.New(ragerr.NotFound, "file not found")
	}
	return nil
}

func (p *Postgres) GetFile(ctx context.Context, fileID string) (model.File, error) {
	var f model.File
	err := p.pool.QueryRow(ctx, `
		SELECT file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, vector_partition
		FROM files WHERE file_id = $1
	`, fileID).Scan(&f.FileID, &f.OwnerID, &f.Filename, &f.ContentType, &f.SizeBytes, &f.UploadedAt, &f.ChunkCount, &f.IngestState, &f.VectorPartition)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.File{}, ragerr.New(ragerr.NotFound, "file not found")
		}
		return model.File{}, ragerr.Wrap(ragerr.PersistenceFailed, "get file", err)
	}
	return f, nil
}

func (p *Postgres) ListFiles(ctx context.Context, ownerID string, limit, offset int) ([]model.File, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, vector_partition
		FROM files WHERE owner_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.PersistenceFailed, "list files", err)
	}
	defer rows.Close()
	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.FileID, &f.OwnerID, &f.Filename, &f.ContentType, &f.SizeBytes, &f.UploadedAt, &f.ChunkCount, &f.IngestState, &f.VectorPartition); err != nil {
			return nil, ragerr.Wrap(ragerr.PersistenceFailed, "scan file row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteFile(ctx context.Context, fileID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM files WHERE file_id = $1`, fileID)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "delete file", err)
	}
	return nil
}

func (p *Postgres) FileIDExists(ctx context.Context, fileID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM files WHERE file_id = $1)`, fileID).Scan(&exists)
	if err != nil {
		return false, ragerr.Wrap(ragerr.PersistenceFailed, "check file id", err)
	}
	return exists, nil
}

func (p *Postgres) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		var parent *string
		if c.ParentChunkID != "" {
			parent = &c.ParentChunkID
		}
		batch.Queue(`
			INSERT INTO chunks (chunk_id, file_id, level, level_index, parent_chunk_id, content, token_count_estimate, vector_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (chunk_id) DO NOTHING
		`, c.ChunkID, c.FileID, int(c.Level), c.LevelIndex, parent, c.Content, c.TokenCountEstimate, c.VectorID)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return ragerr.Wrap(ragerr.PersistenceFailed, "insert chunk", err)
		}
	}
	return nil
}

func (p *Postgres) DeleteChunksByFile(ctx context.Context, fileID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "delete chunks", err)
	}
	return nil
}
