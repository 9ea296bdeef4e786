package memory

// Backend is the persistence layer under the store. Implementations
// must support upsert-by-id and filtered load by user. The store keeps
// all similarity math local, so backends only move nodes around.
//
// Two reference backends exist: a flat JSON file (FileBackend) and
// SQLite (SQLiteBackend).
type Backend interface {
	// Load returns all nodes for a user. Order is unspecified.
	Load(userID string) ([]*Node, error)

	// Put inserts or replaces a node by ID.
	Put(node *Node) error

	// Delete removes a node by ID. Deleting a missing node is a no-op.
	Delete(id string) error

	// UserIDs lists every user with at least one node.
	UserIDs() ([]string, error)

	// Close releases backend resources.
	Close() error
}
