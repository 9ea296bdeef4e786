package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists nodes in SQLite (pure-Go driver, WAL mode).
// Embeddings, metadata, and edges are stored as JSON columns — the
// store computes similarity locally, so the database never needs to
// understand vectors.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) a SQLite backend at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory database: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_nodes (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			type          TEXT NOT NULL,
			content       TEXT NOT NULL,
			embedding     TEXT NOT NULL DEFAULT '[]',
			importance    REAL NOT NULL,
			repetitions   INTEGER NOT NULL DEFAULT 1,
			created_at    TIMESTAMP NOT NULL,
			last_accessed TIMESTAMP NOT NULL,
			metadata      TEXT NOT NULL DEFAULT '{}',
			edges         TEXT NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_memory_nodes_user ON memory_nodes(user_id);
	`)
	return err
}

// Load returns all nodes for a user.
func (b *SQLiteBackend) Load(userID string) ([]*Node, error) {
	rows, err := b.db.Query(`
		SELECT id, user_id, type, content, embedding, importance,
		       repetitions, created_at, last_accessed, metadata, edges
		FROM memory_nodes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNode(rows *sql.Rows) (*Node, error) {
	var n Node
	var embJSON, metaJSON, edgesJSON string
	var created, accessed time.Time

	err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Content, &embJSON,
		&n.Importance, &n.Repetitions, &created, &accessed, &metaJSON, &edgesJSON)
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	n.CreatedAt = created.UTC()
	n.LastAccessedAt = accessed.UTC()
	if err := json.Unmarshal([]byte(embJSON), &n.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding for node %s: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
		return nil, fmt.Errorf("parse metadata for node %s: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(edgesJSON), &n.Edges); err != nil {
		return nil, fmt.Errorf("parse edges for node %s: %w", n.ID, err)
	}
	return &n, nil
}

// Put inserts or replaces a node by ID.
func (b *SQLiteBackend) Put(node *Node) error {
	embJSON, err := json.Marshal(node.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	metaJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if node.Metadata == nil {
		metaJSON = []byte("{}")
	}
	edgesJSON, err := json.Marshal(node.Edges)
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}
	if node.Edges == nil {
		edgesJSON = []byte("[]")
	}

	_, err = b.db.Exec(`
		INSERT INTO memory_nodes
			(id, user_id, type, content, embedding, importance,
			 repetitions, created_at, last_accessed, metadata, edges)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			importance = excluded.importance,
			repetitions = excluded.repetitions,
			last_accessed = excluded.last_accessed,
			metadata = excluded.metadata,
			edges = excluded.edges`,
		node.ID, node.UserID, node.Type, node.Content, string(embJSON),
		node.Importance, node.Repetitions, node.CreatedAt.UTC(),
		node.LastAccessedAt.UTC(), string(metaJSON), string(edgesJSON))
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

// Delete removes a node by ID.
func (b *SQLiteBackend) Delete(id string) error {
	if _, err := b.db.Exec(`DELETE FROM memory_nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return nil
}

// UserIDs lists every user with at least one node.
func (b *SQLiteBackend) UserIDs() ([]string, error) {
	rows, err := b.db.Query(`SELECT DISTINCT user_id FROM memory_nodes`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
