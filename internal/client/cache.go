package client

import (
	"encoding/json"
	"os"

	"github.com/mcqlab/mcq-review/internal/model"
)

// Snapshot is the locally cached session state. It is a convenience cache,
// not a source of truth: it pre-populates the view and skips the username
// prompt before the first server push arrives, and is overwritten by every
// broadcast.
type Snapshot struct {
	Collections            []model.Collection `json:"collections"`
	CurrentCollectionIndex int                `json:"currentCollectionIndex"`
	CurrentUsername        string             `json:"currentUsername"`
	CurrentRole            string             `json:"currentRole"`
	LockedQuestions        []HeldLock         `json:"lockedQuestions"`
	ClientID               string             `json:"myClientId"`
}

// HeldLock is one lock this session believes it holds, tracked locally so it
// knows what to release on tab-switch or shutdown.
type HeldLock struct {
	CollectionIndex int `json:"collectionIndex"`
	QuestionIndex   int `json:"questionIndex"`
}

// Cache persists a Snapshot to a single JSON file.
type Cache struct {
	path string
}

// NewCache creates a Cache at the given path. An empty path disables caching.
func NewCache(path string) *Cache {
	if path == "" {
		return nil
	}
	return &Cache{path: path}
}

// Save writes the snapshot. Errors are returned for logging but a failed
// save never interrupts the session.
func (c *Cache) Save(snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Load reads a previously saved snapshot. ok is false when the file is
// missing or unreadable.
func (c *Cache) Load() (Snapshot, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Snapshot{}, false
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false
	}
	return snapshot, true
}
