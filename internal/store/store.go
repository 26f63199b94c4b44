package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/protocol"
)

// Notifier receives a snapshot of the authoritative state after every
// accepted mutation. The hub implements it to fan the state out to every
// open connection.
type Notifier interface {
	StateChanged(state model.AppState, timestamp int64)
}

// Store owns the canonical AppState. Its command methods are the only
// mutation entry points; a single mutex serializes them, so each command runs
// to completion — broadcast included — before the next is processed.
//
// Rejections are silent on purpose: no error travels back to the client, no
// broadcast happens, and the client's optimistic copy reconverges on the next
// unrelated broadcast. Do not add an error channel here.
type Store struct {
	mu       sync.Mutex
	state    model.AppState
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Store seeded with the default single-collection state.
func New(notifier Notifier, log zerolog.Logger) *Store {
	return &Store{
		state:    model.NewAppState(),
		notifier: notifier,
		log:      log.With().Str("component", "store").Logger(),
		now:      time.Now,
	}
}

// Snapshot returns a deep copy of the current state, for initial pushes and
// read-only REST access.
func (s *Store) Snapshot() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Apply dispatches a decoded command to its handler. REQUEST_STATE is a read,
// not a mutation, and is handled at the connection layer; here it is a no-op.
func (s *Store) Apply(cmd protocol.Command) bool {
	switch c := cmd.(type) {
	case protocol.LockQuestion:
		return s.LockQuestion(c)
	case protocol.UnlockQuestion:
		return s.UnlockQuestion(c)
	case protocol.UpdateQuestion:
		return s.UpdateQuestion(c)
	case protocol.DeleteQuestion:
		return s.DeleteQuestion(c)
	case protocol.AddQuestions:
		return s.AddQuestions(c)
	case protocol.CreateCollection:
		return s.CreateCollection(c)
	case protocol.DeleteCollection:
		return s.DeleteCollection(c)
	case protocol.AddActivity:
		return s.AddActivity(c)
	case protocol.ClearLog:
		return s.ClearLog(c)
	default:
		return false
	}
}

// LockQuestion sets the advisory lock if the index is unlocked or already
// owned by the same client. A lock held by another client leaves the state
// untouched. The index is not range-checked against the question list: an
// out-of-range lock is stored as-is and simply never renders.
func (s *Store) LockQuestion(cmd protocol.LockQuestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	if existing, held := collection.Locks[cmd.Index]; held && existing.ClientID != cmd.ClientID {
		s.log.Debug().
			Int("index", cmd.Index).
			Str("holder", existing.Username).
			Str("requester", cmd.Username).
			Msg("Lock refused, held by another client")
		return false
	}
	collection.Locks[cmd.Index] = model.Lock{ClientID: cmd.ClientID, Username: cmd.Username}

	entry := model.NewActivityEntry(s.now(), model.EventQuestionLocked, cmd.Username).
		WithQuestionIndex(cmd.Index)
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.broadcast()
	return true
}

// UnlockQuestion releases a lock, but only for the client that holds it.
func (s *Store) UnlockQuestion(cmd protocol.UnlockQuestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	if existing, held := collection.Locks[cmd.Index]; !held || existing.ClientID != cmd.ClientID {
		return false
	}
	delete(collection.Locks, cmd.Index)

	entry := model.NewActivityEntry(s.now(), model.EventQuestionUnlocked, cmd.Username).
		WithQuestionIndex(cmd.Index)
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.broadcast()
	return true
}

// UpdateQuestion replaces the question at the given index wholesale. The
// caller must hold the lock; an edit without it is dropped without a trace.
func (s *Store) UpdateQuestion(cmd protocol.UpdateQuestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	if existing, held := collection.Locks[cmd.Index]; !held || existing.ClientID != cmd.ClientID {
		s.log.Debug().
			Int("index", cmd.Index).
			Str("requester", cmd.Username).
			Msg("Update dropped, lock not held")
		return false
	}
	if cmd.Index < 0 || cmd.Index >= len(collection.Questions) {
		return false
	}
	collection.Questions[cmd.Index] = cmd.Question.Clone()

	entry := model.NewActivityEntry(s.now(), model.EventQuestionUpdated, cmd.Username).
		WithQuestionIndex(cmd.Index)
	entry.Field = cmd.Field
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.broadcast()
	return true
}

// DeleteQuestion removes a locked question, drops its lock, and re-keys every
// lock above the deleted index down by one.
func (s *Store) DeleteQuestion(cmd protocol.DeleteQuestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	if existing, held := collection.Locks[cmd.Index]; !held || existing.ClientID != cmd.ClientID {
		s.log.Debug().
			Int("index", cmd.Index).
			Str("requester", cmd.Username).
			Msg("Delete dropped, lock not held")
		return false
	}
	if cmd.Index < 0 || cmd.Index >= len(collection.Questions) {
		return false
	}
	collection.Questions = append(collection.Questions[:cmd.Index], collection.Questions[cmd.Index+1:]...)

	delete(collection.Locks, cmd.Index)
	renumbered := make(map[int]model.Lock, len(collection.Locks))
	for idx, lock := range collection.Locks {
		if idx > cmd.Index {
			renumbered[idx-1] = lock
		} else {
			renumbered[idx] = lock
		}
	}
	collection.Locks = renumbered

	entry := model.NewActivityEntry(s.now(), model.EventQuestionDeleted, cmd.Username).
		WithQuestionIndex(cmd.Index)
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.broadcast()
	return true
}

// AddQuestions appends parsed questions to an existing collection.
func (s *Store) AddQuestions(cmd protocol.AddQuestions) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	for _, q := range cmd.Questions {
		collection.Questions = append(collection.Questions, q.Clone())
	}

	entry := model.NewActivityEntry(s.now(), model.EventFileUploaded, cmd.Username)
	entry.Filename = cmd.Filename
	entry.QuestionCount = len(cmd.Questions)
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.broadcast()
	return true
}

// CreateCollection appends a new collection named from its metadata and makes
// it the current one.
func (s *Store) CreateCollection(cmd protocol.CreateCollection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s %s %s", cmd.Metadata.Year, cmd.Metadata.Type, cmd.Metadata.Unit)
	questions := make([]model.Question, 0, len(cmd.Questions))
	for _, q := range cmd.Questions {
		questions = append(questions, q.Clone())
	}
	collection := model.NewCollection(name, cmd.Metadata, questions)

	entry := model.NewActivityEntry(s.now(), model.EventCollectionCreated, cmd.Username)
	entry.CollectionName = name
	entry.QuestionCount = len(cmd.Questions)
	collection.ActivityLog = append(collection.ActivityLog, entry)

	s.state.Collections = append(s.state.Collections, collection)
	s.state.CurrentCollectionIndex = len(s.state.Collections) - 1

	s.broadcast()
	return true
}

// DeleteCollection removes a collection and clamps the shared current index:
// deleting the current collection resets it to 0, deleting an earlier one
// shifts it down by one, deleting a later one leaves it alone. The last
// remaining collection can never be deleted.
func (s *Store) DeleteCollection(cmd protocol.DeleteCollection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Collections) <= 1 {
		return false
	}
	if cmd.CollectionIndex < 0 || cmd.CollectionIndex >= len(s.state.Collections) {
		return false
	}
	name := s.state.Collections[cmd.CollectionIndex].Name
	s.state.Collections = append(
		s.state.Collections[:cmd.CollectionIndex],
		s.state.Collections[cmd.CollectionIndex+1:]...,
	)

	if s.state.CurrentCollectionIndex >= cmd.CollectionIndex {
		if s.state.CurrentCollectionIndex == cmd.CollectionIndex {
			s.state.CurrentCollectionIndex = 0
		} else {
			s.state.CurrentCollectionIndex--
		}
	}

	// The deletion is recorded in whichever collection is current after the
	// clamp — the deleted one no longer has a log to write to.
	entry := model.NewActivityEntry(s.now(), model.EventCollectionDeleted, cmd.Username)
	entry.CollectionName = name
	current := &s.state.Collections[s.state.CurrentCollectionIndex]
	current.ActivityLog = append(current.ActivityLog, entry)

	s.broadcast()
	return true
}

// AddActivity appends a client-authored entry verbatim.
func (s *Store) AddActivity(cmd protocol.AddActivity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	collection.ActivityLog = append(collection.ActivityLog, cmd.Entry)

	s.broadcast()
	return true
}

// ClearLog empties a collection's activity log.
func (s *Store) ClearLog(cmd protocol.ClearLog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collection(cmd.CollectionIndex)
	if !ok {
		return false
	}
	collection.ActivityLog = []model.ActivityEntry{}

	s.broadcast()
	return true
}

// RecordExport appends a csv_exported entry on behalf of the REST export
// endpoint, which bypasses the WebSocket command path.
func (s *Store) RecordExport(collectionIndex int, username string) bool {
	return s.AddActivity(protocol.AddActivity{
		Entry:           model.NewActivityEntry(s.now(), model.EventCSVExported, username),
		CollectionIndex: collectionIndex,
	})
}

// collection resolves a collection index, logging and rejecting out-of-range
// values. Callers must hold s.mu.
func (s *Store) collection(index int) (*model.Collection, bool) {
	if index < 0 || index >= len(s.state.Collections) {
		s.log.Warn().Int("collectionIndex", index).Msg("Command dropped, collection index out of range")
		return nil, false
	}
	return &s.state.Collections[index], true
}

// broadcast pushes a snapshot to the notifier while still holding s.mu, so
// subscribers observe broadcasts in exactly the order mutations were applied.
// Callers must hold s.mu.
func (s *Store) broadcast() {
	if s.notifier == nil {
		return
	}
	s.notifier.StateChanged(s.state.Clone(), s.now().UnixMilli())
}
