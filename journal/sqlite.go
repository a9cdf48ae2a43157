package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"xdao.co/matreg/registry"

	_ "modernc.org/sqlite"
)

// SQLite is a durable Journal backed by a single table.
type SQLite struct {
	db *sql.DB

	// mu serializes appends so the cached head stays in step with the table.
	mu       sync.Mutex
	headSeq  uint64
	headHash string
}

var _ Journal = (*SQLite)(nil)

// OpenSQLite opens (or creates) the journal database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// database/sql pools connections; SQLite wants a single writer.
	db.SetMaxOpenConns(1)

	j, err := NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// NewSQLite wraps an open database, creating the table if needed.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	j := &SQLite{db: db, headHash: GenesisHash}
	if err := j.migrate(ctx); err != nil {
		return nil, err
	}
	row := j.db.QueryRowContext(ctx, `SELECT seq, hash FROM journal_entries ORDER BY seq DESC LIMIT 1`)
	var (
		seq  uint64
		hash string
	)
	switch err := row.Scan(&seq, &hash); err {
	case nil:
		j.headSeq, j.headHash = seq, hash
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("journal: load head: %w", err)
	}
	return j, nil
}

func (j *SQLite) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS journal_entries (
		seq INTEGER PRIMARY KEY,
		entry_id TEXT NOT NULL UNIQUE,
		op TEXT NOT NULL,
		caller TEXT NOT NULL,
		height INTEGER NOT NULL,
		payload TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	);`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

func (j *SQLite) Append(ctx context.Context, eff registry.Effect) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, err := newEntry(j.headSeq+1, j.headHash, eff)
	if err != nil {
		return Entry{}, err
	}
	query := `INSERT INTO journal_entries (
		seq, entry_id, op, caller, height, payload, prev_hash, hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = j.db.ExecContext(ctx, query,
		e.Seq, e.ID.String(), string(e.Op), string(e.Caller), e.Height, string(e.Payload), e.PrevHash, e.Hash,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: insert entry %d: %w", e.Seq, err)
	}
	j.headSeq, j.headHash = e.Seq, e.Hash
	return e, nil
}

func (j *SQLite) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, entry_id, op, caller, height, payload, prev_hash, hash
		FROM journal_entries
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("journal: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			op      string
			caller  string
			payload string
		)
		if err := rows.Scan(&e.Seq, &id, &op, &caller, &e.Height, &payload, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("journal: entry %d id: %w", e.Seq, err)
		}
		e.Op = registry.Op(op)
		e.Caller = registry.Principal(caller)
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *SQLite) Close() error { return j.db.Close() }
