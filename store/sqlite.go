package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	name        TEXT PRIMARY KEY,
	config      TEXT NOT NULL,
	api_key     TEXT NOT NULL DEFAULT '',
	reputation  REAL NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feed_items (
	id                 INTEGER PRIMARY KEY,
	step               INTEGER NOT NULL,
	created_at         INTEGER NOT NULL,
	agent              TEXT NOT NULL,
	wallet             TEXT NOT NULL DEFAULT '',
	action             TEXT NOT NULL,
	target             TEXT NOT NULL DEFAULT '',
	target_post_id     INTEGER,
	parent_post_id     INTEGER,
	content            TEXT NOT NULL DEFAULT '',
	reasoning          TEXT NOT NULL DEFAULT '',
	likes              INTEGER NOT NULL DEFAULT 0,
	comments           INTEGER NOT NULL DEFAULT 0,
	views              INTEGER NOT NULL DEFAULT 0,
	accusation_count   INTEGER NOT NULL DEFAULT 0,
	chain_tx_hash      TEXT NOT NULL DEFAULT '',
	chain_content_hash TEXT NOT NULL DEFAULT '',
	viewed_by          TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS simulation_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	step              INTEGER NOT NULL,
	total_accusations INTEGER NOT NULL,
	next_entry_id     INTEGER NOT NULL,
	vouches           TEXT NOT NULL DEFAULT '[]'
);
`

// SQLite is a Store backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	agents, err := s.loadAgents(ctx)
	if err != nil {
		return nil, err
	}
	snap.Agents = agents

	feed, err := s.loadFeed(ctx)
	if err != nil {
		return nil, err
	}
	snap.Feed = feed

	var (
		st      core.SimulationState
		vouches string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT step, total_accusations, next_entry_id, vouches FROM simulation_state WHERE id = 1`,
	).Scan(&st.Step, &st.TotalAccusations, &st.NextEntryID, &vouches)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load simulation state: %w", err)
	default:
		if err := json.Unmarshal([]byte(vouches), &st.Vouches); err != nil {
			return nil, fmt.Errorf("decode vouches: %w", err)
		}
		snap.State = &st
	}
	return snap, nil
}

func (s *SQLite) loadAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT config, api_key, reputation, created_at FROM agents ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	defer rows.Close()

	var out []AgentRecord
	for rows.Next() {
		var (
			raw     string
			rec     AgentRecord
			created int64
		)
		if err := rows.Scan(&raw, &rec.APIKey, &rec.Reputation, &created); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		var cfg agent.Config
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode agent config: %w", err)
		}
		cfg.APIKey = rec.APIKey
		rec.Config = cfg
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) loadFeed(ctx context.Context) ([]core.FeedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step, created_at, agent, wallet, action, target, target_post_id, parent_post_id,
		       content, reasoning, likes, comments, views, accusation_count,
		       chain_tx_hash, chain_content_hash, viewed_by
		FROM (SELECT * FROM feed_items ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, MaxFeedWindow)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	defer rows.Close()

	var out []core.FeedEntry
	for rows.Next() {
		var (
			e           core.FeedEntry
			created     int64
			action      string
			targetPost  sql.NullInt64
			parentPost  sql.NullInt64
			viewedByRaw string
		)
		if err := rows.Scan(&e.ID, &e.Step, &created, &e.Agent, &e.Wallet, &action, &e.Target,
			&targetPost, &parentPost, &e.Content, &e.Reasoning, &e.Likes, &e.Comments, &e.Views,
			&e.AccusationCount, &e.ChainTxHash, &e.ChainContentHash, &viewedByRaw); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		e.Timestamp = fromMillis(created)
		e.Action = core.Action(action)
		if targetPost.Valid {
			e.TargetPostID = core.PostID(targetPost.Int64)
		}
		if parentPost.Valid {
			e.ParentPostID = core.PostID(parentPost.Int64)
		}
		var viewers []string
		if err := json.Unmarshal([]byte(viewedByRaw), &viewers); err != nil {
			return nil, fmt.Errorf("decode viewers of %d: %w", e.ID, err)
		}
		e.ViewedBy = make(map[string]bool, len(viewers))
		for _, v := range viewers {
			e.ViewedBy[v] = true
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertAgent(ctx context.Context, rec AgentRecord) error {
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("encode agent config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (name, config, api_key, reputation, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			config = excluded.config,
			api_key = excluded.api_key,
			reputation = excluded.reputation`,
		rec.Name, string(cfg), rec.APIKey, rec.Reputation, toMillis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", rec.Name, err)
	}
	return nil
}

func (s *SQLite) DeleteAgent(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete agent %s: %w", name, err)
	}
	return nil
}

func nullablePostID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func viewersJSON(e core.FeedEntry) (string, error) {
	viewers := e.Viewers()
	if viewers == nil {
		viewers = []string{}
	}
	bz, err := json.Marshal(viewers)
	if err != nil {
		return "", fmt.Errorf("encode viewers: %w", err)
	}
	return string(bz), nil
}

func (s *SQLite) AppendFeedEntry(ctx context.Context, e core.FeedEntry) error {
	viewers, err := viewersJSON(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feed_items (id, step, created_at, agent, wallet, action, target, target_post_id,
			parent_post_id, content, reasoning, likes, comments, views, accusation_count,
			chain_tx_hash, chain_content_hash, viewed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Step, toMillis(e.Timestamp), e.Agent, e.Wallet, string(e.Action), e.Target,
		nullablePostID(e.TargetPostID), nullablePostID(e.ParentPostID), e.Content, e.Reasoning,
		e.Likes, e.Comments, e.Views, e.AccusationCount, e.ChainTxHash, e.ChainContentHash, viewers)
	if err != nil {
		return fmt.Errorf("append feed item %d: %w", e.ID, err)
	}
	return nil
}

func (s *SQLite) UpdateFeedCounters(ctx context.Context, e core.FeedEntry) error {
	viewers, err := viewersJSON(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE feed_items SET likes = ?, comments = ?, views = ?, accusation_count = ?,
			chain_tx_hash = ?, chain_content_hash = ?, viewed_by = ?
		WHERE id = ?`,
		e.Likes, e.Comments, e.Views, e.AccusationCount, e.ChainTxHash, e.ChainContentHash, viewers, e.ID)
	if err != nil {
		return fmt.Errorf("update feed item %d: %w", e.ID, err)
	}
	return nil
}

func (s *SQLite) SaveState(ctx context.Context, st core.SimulationState) error {
	vouches := st.Vouches
	if vouches == nil {
		vouches = []string{}
	}
	bz, err := json.Marshal(vouches)
	if err != nil {
		return fmt.Errorf("encode vouches: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO simulation_state (id, step, total_accusations, next_entry_id, vouches)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			step = excluded.step,
			total_accusations = excluded.total_accusations,
			next_entry_id = excluded.next_entry_id,
			vouches = excluded.vouches`,
		st.Step, st.TotalAccusations, st.NextEntryID, string(bz))
	if err != nil {
		return fmt.Errorf("save simulation state: %w", err)
	}
	return nil
}

func (s *SQLite) ClearFeed(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM feed_items`); err != nil {
		return fmt.Errorf("clear feed: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteFeedEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM feed_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete feed item %d: %w", id, err)
		}
	}
	return tx.Commit()
}
