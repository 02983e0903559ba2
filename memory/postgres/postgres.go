// Package postgres implements memory.Store on PostgreSQL using the process's
// shared pgx connection pool. History is persisted across three tables:
// checkpoint headers (one row per turn), write-ahead markers (one row per
// appended batch) and large-value blobs (payloads exceeding the inline
// threshold). The schema is owned by store/postgres migrations.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/memory"
)

// inlineThreshold is the max encoded payload size stored inline on the
// checkpoint header; larger payloads are offloaded to checkpoint_blobs.
const inlineThreshold = 8 * 1024

// Store is a durable memory.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing shared connection pool. The pool
// is owned by the caller; Close is not provided here.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// History implements memory.Store. Unknown thread keys yield an empty slice.
func (s *Store) History(ctx context.Context, threadKey string) ([]core.Content, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(b.payload, c.payload)
		FROM checkpoints c
		LEFT JOIN checkpoint_blobs b ON b.id = c.blob_id
		WHERE c.thread_id = $1
		ORDER BY c.seq`, threadKey)
	if err != nil {
		return nil, core.NewStoreError("query history", err)
	}
	defer rows.Close()

	var history []core.Content
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, core.NewStoreError("scan history row", err)
		}
		content, err := memory.DecodeContent(payload)
		if err != nil {
			return nil, core.NewStoreError("decode history row", err)
		}
		history = append(history, content)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("iterate history", err)
	}
	return history, nil
}

// Append implements memory.Store. The batch commits atomically: a write
// marker, the checkpoint headers and any blob offloads either all land or
// none do.
func (s *Store) Append(ctx context.Context, threadKey string, contents ...core.Content) error {
	if len(contents) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.NewStoreError("begin append", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialize appends per thread for the duration of the transaction so
	// two concurrent batches cannot read the same MAX(seq) and collide on
	// the (thread_id, seq) primary key. The lock releases on commit or
	// rollback.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, threadKey,
	); err != nil {
		return core.NewStoreError("lock thread", err)
	}

	var seq int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = $1`, threadKey,
	).Scan(&seq); err != nil {
		return core.NewStoreError("next sequence", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO checkpoint_writes (id, thread_id, batch_size, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), threadKey, len(contents), time.Now().UTC(),
	); err != nil {
		return core.NewStoreError("record write marker", err)
	}

	for _, content := range contents {
		payload, err := memory.EncodeContent(content)
		if err != nil {
			return core.NewStoreError("encode content", err)
		}

		seq++
		var blobID *string
		inline := payload
		if len(payload) > inlineThreshold {
			id := uuid.NewString()
			if _, err := tx.Exec(ctx,
				`INSERT INTO checkpoint_blobs (id, thread_id, payload, created_at) VALUES ($1, $2, $3, $4)`,
				id, threadKey, payload, time.Now().UTC(),
			); err != nil {
				return core.NewStoreError("store blob", err)
			}
			blobID = &id
			inline = nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO checkpoints (thread_id, seq, role, payload, blob_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			threadKey, seq, content.Role, inline, blobID, time.Now().UTC(),
		); err != nil {
			return core.NewStoreError("store checkpoint", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return core.NewStoreError("commit append", err)
	}
	return nil
}
