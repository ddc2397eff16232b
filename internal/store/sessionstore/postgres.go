// Package sessionstore implements the session log against Postgres: an
// append-only conversation log keyed by session id, using the
// same ON CONFLICT DO NOTHING create-if-absent pattern as the relational
// store's file insert.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"

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
		return nil, fmt.Errorf("open session store pool: %w", err)
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
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('public.sessions') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("check sessions table: %w", err)
	}
	if !exists {
		_, err := p.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS sessions (
				session_id TEXT PRIMARY KEY,
				owner_id   TEXT,
				file_ids   JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE TABLE IF NOT EXISTS session_messages (
				id         BIGSERIAL PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				metadata   JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages (session_id, id);
		`)
		if err != nil {
			return fmt.Errorf("create session tables: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateIfAbsent(ctx context.Context, sessionID, ownerID string, fileIDs []string) error {
	fileIDsJSON, err := json.Marshal(fileIDs)
	if err != nil {
		return fmt.Errorf("marshal file_ids: %w", err)
	}
	var owner any
	if ownerID != "" {
		owner = ownerID
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, owner_id, file_ids)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, owner, fileIDsJSON)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "create session", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, sessionID string, role model.Role, content string, metadata map[string]any) error {
	if err := p.CreateIfAbsent(ctx, sessionID, "", nil); err != nil {
		return err
	}
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "begin append", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO session_messages (session_id, role, content, metadata)
		VALUES ($1, $2, $3, $4)
	`, sessionID, string(role), content, metaJSON)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "append message", err)
	}
	_, err = tx.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE session_id = $1`, sessionID)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "update session timestamp", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "commit append", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.pool.Query(ctx, `
		SELECT role, content, created_at, metadata
		FROM session_messages
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.PersistenceFailed, "load recent messages", err)
	}
	defer rows.Close()

	var reversed []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		var metaJSON []byte
		if err := rows.Scan(&role, &m.Content, &m.Timestamp, &metaJSON); err != nil {
			return nil, ragerr.Wrap(ragerr.PersistenceFailed, "scan message row", err)
		}
		m.Role = model.Role(role)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal message metadata: %w", err)
			}
		}
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(ragerr.PersistenceFailed, "iterate messages", err)
	}

	out := make([]model.Message, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, sessionID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "delete session", err)
	}
	return nil
}
