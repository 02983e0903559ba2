// Package postgres implements store.Store, store.SkillStore and store.Purger
// on PostgreSQL. It owns the relational schema for the whole module, including
// the checkpoint tables consumed by memory/postgres, and ships its migrations
// embedded so a deployment is a single binary.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a durable store.Store, store.SkillStore and store.Purger backed by
// PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing shared connection pool. The pool
// is owned by the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a new pool to databaseURL, applies pending migrations and
// returns a Store owning the pool. Close releases it.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, core.NewStoreError("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.NewStoreError("ping", err)
	}
	return New(pool), nil
}

// Pool exposes the underlying connection pool so sibling stores, such as the
// checkpoint-backed memory store, can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies all pending schema migrations to the database at
// databaseURL. It is safe to call on every startup.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return core.NewStoreError("load migrations", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return core.NewStoreError("open migrator", err)
	}
	defer m.Close() //nolint:errcheck

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return core.NewStoreError("apply migrations", err)
	}
	return nil
}

// migrateURL rewrites a postgres connection URL to select the pgx/v5 migrate
// driver.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}

// GetConfig implements store.Store.
func (s *Store) GetConfig(ctx context.Context, agentID string) (*store.AgentConfig, error) {
	var (
		cfg                               store.AgentConfig
		swapConfig, socialConfig, bundles []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, model, temperature, frequency_penalty, presence_penalty,
		       prompt, prompt_append,
		       wallet_enabled, wallet_network, wallet_skills,
		       swap_skills, swap_config,
		       social_skills, social_config,
		       common_skills, skill_bundles,
		       created_at, updated_at
		FROM agents
		WHERE id = $1`, agentID,
	).Scan(
		&cfg.ID, &cfg.Name, &cfg.Model, &cfg.Temperature, &cfg.FrequencyPenalty, &cfg.PresencePenalty,
		&cfg.Prompt, &cfg.PromptAppend,
		&cfg.WalletEnabled, &cfg.WalletNetwork, &cfg.WalletSkills,
		&cfg.SwapSkills, &swapConfig,
		&cfg.SocialSkills, &socialConfig,
		&cfg.CommonSkills, &bundles,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NewNotFoundError(agentID)
	}
	if err != nil {
		return nil, core.NewStoreError("get config", err)
	}

	if err := unmarshalJSON(swapConfig, &cfg.SwapConfig); err != nil {
		return nil, core.NewStoreError("decode swap config", err)
	}
	if err := unmarshalJSON(socialConfig, &cfg.SocialConfig); err != nil {
		return nil, core.NewStoreError("decode social config", err)
	}
	if err := unmarshalJSON(bundles, &cfg.SkillBundles); err != nil {
		return nil, core.NewStoreError("decode skill bundles", err)
	}
	return &cfg, nil
}

// GetVersion implements store.Store. It reads only the timestamp column so
// the per-execution staleness probe stays cheap.
func (s *Store) GetVersion(ctx context.Context, agentID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT updated_at FROM agents WHERE id = $1`, agentID,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, core.NewNotFoundError(agentID)
	}
	if err != nil {
		return time.Time{}, core.NewStoreError("get version", err)
	}
	return updatedAt, nil
}

// SaveConfig upserts an agent configuration, advancing updated_at on every
// write so cached pipelines built from the previous revision go stale.
func (s *Store) SaveConfig(ctx context.Context, cfg store.AgentConfig) error {
	swapConfig, err := marshalJSON(cfg.SwapConfig)
	if err != nil {
		return core.NewStoreError("encode swap config", err)
	}
	socialConfig, err := marshalJSON(cfg.SocialConfig)
	if err != nil {
		return core.NewStoreError("encode social config", err)
	}
	bundles, err := marshalJSON(cfg.SkillBundles)
	if err != nil {
		return core.NewStoreError("encode skill bundles", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO agents (
			id, name, model, temperature, frequency_penalty, presence_penalty,
			prompt, prompt_append,
			wallet_enabled, wallet_network, wallet_skills,
			swap_skills, swap_config,
			social_skills, social_config,
			common_skills, skill_bundles,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			model = EXCLUDED.model,
			temperature = EXCLUDED.temperature,
			frequency_penalty = EXCLUDED.frequency_penalty,
			presence_penalty = EXCLUDED.presence_penalty,
			prompt = EXCLUDED.prompt,
			prompt_append = EXCLUDED.prompt_append,
			wallet_enabled = EXCLUDED.wallet_enabled,
			wallet_network = EXCLUDED.wallet_network,
			wallet_skills = EXCLUDED.wallet_skills,
			swap_skills = EXCLUDED.swap_skills,
			swap_config = EXCLUDED.swap_config,
			social_skills = EXCLUDED.social_skills,
			social_config = EXCLUDED.social_config,
			common_skills = EXCLUDED.common_skills,
			skill_bundles = EXCLUDED.skill_bundles,
			updated_at = NOW()`,
		cfg.ID, cfg.Name, cfg.Model, cfg.Temperature, cfg.FrequencyPenalty, cfg.PresencePenalty,
		cfg.Prompt, cfg.PromptAppend,
		cfg.WalletEnabled, cfg.WalletNetwork, textArray(cfg.WalletSkills),
		textArray(cfg.SwapSkills), swapConfig,
		textArray(cfg.SocialSkills), socialConfig,
		textArray(cfg.CommonSkills), bundles,
	)
	if err != nil {
		return core.NewStoreError("save config", err)
	}
	return nil
}

// GetData implements store.Store. Absent rows yield an empty record, not an
// error.
func (s *Store) GetData(ctx context.Context, agentID string) (*store.AgentData, error) {
	d := store.AgentData{ID: agentID}
	err := s.pool.QueryRow(ctx, `
		SELECT wallet_data, social_id, social_username, social_name, created_at, updated_at
		FROM agent_data
		WHERE id = $1`, agentID,
	).Scan(&d.WalletData, &d.SocialID, &d.SocialUsername, &d.SocialName, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &store.AgentData{ID: agentID}, nil
	}
	if err != nil {
		return nil, core.NewStoreError("get data", err)
	}
	return &d, nil
}

// SetData implements store.Store.
func (s *Store) SetData(ctx context.Context, agentID string, delta store.DataDelta) error {
	_, err := s.setData(ctx, agentID, delta, false)
	return err
}

// SetDataOnce implements store.Store. The row is locked for the duration of
// the read-modify-write, so concurrent first-build artifact writes resolve to
// exactly one winner per field.
func (s *Store) SetDataOnce(ctx context.Context, agentID string, delta store.DataDelta) (bool, error) {
	return s.setData(ctx, agentID, delta, true)
}

func (s *Store) setData(ctx context.Context, agentID string, delta store.DataDelta, onlyEmpty bool) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, core.NewStoreError("begin set data", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	d := store.AgentData{ID: agentID}
	err = tx.QueryRow(ctx, `
		SELECT wallet_data, social_id, social_username, social_name
		FROM agent_data
		WHERE id = $1
		FOR UPDATE`, agentID,
	).Scan(&d.WalletData, &d.SocialID, &d.SocialUsername, &d.SocialName)
	exists := true
	if errors.Is(err, pgx.ErrNoRows) {
		exists = false
	} else if err != nil {
		return false, core.NewStoreError("read data", err)
	}

	written := false
	apply := func(dst *string, src *string) {
		if src == nil {
			return
		}
		if onlyEmpty && *dst != "" {
			return
		}
		*dst = *src
		written = true
	}
	apply(&d.WalletData, delta.WalletData)
	apply(&d.SocialID, delta.SocialID)
	apply(&d.SocialUsername, delta.SocialUsername)
	apply(&d.SocialName, delta.SocialName)

	if !written {
		return false, tx.Commit(ctx)
	}

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE agent_data
			SET wallet_data = $2, social_id = $3, social_username = $4, social_name = $5, updated_at = NOW()
			WHERE id = $1`,
			agentID, d.WalletData, d.SocialID, d.SocialUsername, d.SocialName)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO agent_data (id, wallet_data, social_id, social_username, social_name)
			VALUES ($1, $2, $3, $4, $5)`,
			agentID, d.WalletData, d.SocialID, d.SocialUsername, d.SocialName)
	}
	if err != nil {
		return false, core.NewStoreError("write data", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, core.NewStoreError("commit set data", err)
	}
	return true, nil
}

// GetAgentData implements store.SkillStore.
func (s *Store) GetAgentData(ctx context.Context, agentID, skill, key string) (map[string]any, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM agent_skill_data WHERE agent_id = $1 AND skill = $2 AND key = $3`,
		agentID, skill, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStoreError("get agent skill data", err)
	}
	var data map[string]any
	if err := unmarshalJSON(payload, &data); err != nil {
		return nil, core.NewStoreError("decode agent skill data", err)
	}
	return data, nil
}

// SaveAgentData implements store.SkillStore.
func (s *Store) SaveAgentData(ctx context.Context, agentID, skill, key string, data map[string]any) error {
	payload, err := marshalJSON(data)
	if err != nil {
		return core.NewStoreError("encode agent skill data", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_skill_data (agent_id, skill, key, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, skill, key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		agentID, skill, key, payload)
	if err != nil {
		return core.NewStoreError("save agent skill data", err)
	}
	return nil
}

// GetThreadData implements store.SkillStore.
func (s *Store) GetThreadData(ctx context.Context, threadID, skill, key string) (map[string]any, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM thread_skill_data WHERE thread_id = $1 AND skill = $2 AND key = $3`,
		threadID, skill, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStoreError("get thread skill data", err)
	}
	var data map[string]any
	if err := unmarshalJSON(payload, &data); err != nil {
		return nil, core.NewStoreError("decode thread skill data", err)
	}
	return data, nil
}

// SaveThreadData implements store.SkillStore.
func (s *Store) SaveThreadData(ctx context.Context, threadID, agentID, skill, key string, data map[string]any) error {
	payload, err := marshalJSON(data)
	if err != nil {
		return core.NewStoreError("encode thread skill data", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO thread_skill_data (thread_id, skill, key, agent_id, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id, skill, key) DO UPDATE SET agent_id = EXCLUDED.agent_id, data = EXCLUDED.data, updated_at = NOW()`,
		threadID, skill, key, agentID, payload)
	if err != nil {
		return core.NewStoreError("save thread skill data", err)
	}
	return nil
}

// Purge implements store.Purger. All deletions run inside one transaction;
// any failure rolls the whole call back.
func (s *Store) Purge(ctx context.Context, req store.PurgeRequest) error {
	if !req.Conversation && !req.SkillData {
		return core.NewInvalidRequestError("at least one of skill data or conversation must be purged")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.NewStoreError("begin purge", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if req.SkillData {
		if _, err := tx.Exec(ctx,
			`DELETE FROM agent_skill_data WHERE agent_id = $1`, req.AgentID); err != nil {
			return core.NewStoreError("purge agent skill data", err)
		}
		if req.ThreadID != "" {
			_, err = tx.Exec(ctx,
				`DELETE FROM thread_skill_data WHERE agent_id = $1 AND thread_id = $2`,
				req.AgentID, req.ThreadID)
		} else {
			_, err = tx.Exec(ctx,
				`DELETE FROM thread_skill_data WHERE agent_id = $1`, req.AgentID)
		}
		if err != nil {
			return core.NewStoreError("purge thread skill data", err)
		}
	}

	if req.Conversation {
		var clause string
		var arg string
		if req.ThreadID != "" {
			clause = "thread_id = $1"
			arg = core.ThreadKey(req.AgentID, req.ThreadID)
		} else {
			clause = "thread_id LIKE $1"
			arg = core.ThreadKeyPrefix(req.AgentID) + "%"
		}
		for _, table := range []string{"checkpoints", "checkpoint_writes", "checkpoint_blobs"} {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE %s", table, clause), arg); err != nil {
				return core.NewStoreError("purge "+table, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return core.NewStoreError("commit purge", err)
	}
	return nil
}

// textArray normalizes nil slices so array columns never receive NULL.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON[T any](payload []byte, dst *T) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dst)
}
