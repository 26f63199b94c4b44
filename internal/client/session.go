// Package client implements the review-client side of the sync protocol: a
// local mirror of the server state, replaced wholesale on every broadcast,
// plus command emission and local lock bookkeeping.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/protocol"
)

// reconnectCeiling caps the linear reconnect ramp.
const reconnectCeiling = 10 * time.Second

const writeTimeout = 10 * time.Second

// reconnectDelay ramps linearly with the attempt count, capped at the ceiling.
func reconnectDelay(tries int) time.Duration {
	return min(reconnectCeiling, time.Duration(tries)*time.Second)
}

var (
	// ErrNotConnected is returned when a command is emitted while the channel
	// is down. Callers treat it as "skipped": the command is not queued.
	ErrNotConnected = errors.New("client: not connected")
	// ErrUsernameRequired gates editing actions until a username is set.
	ErrUsernameRequired = errors.New("client: username required")
	// ErrLockNotHeld is the local short-circuit for edits without the lock.
	// The server re-validates independently; this only saves a round trip.
	ErrLockNotHeld = errors.New("client: lock not held")
)

// Config configures a Session.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the server's /ws route.
	URL      string
	Username string
	Role     string
	// CachePath enables the local snapshot cache when non-empty.
	CachePath string
	Log       zerolog.Logger
	// OnState fires after every mirror replacement.
	OnState func(model.AppState)
	// OnStatus fires on connection status changes, with the UI status line.
	OnStatus func(string)
}

// Session is one client connection: mirror, identity, and held locks.
type Session struct {
	url      string
	clientID string
	log      zerolog.Logger
	cache    *Cache
	onState  func(model.AppState)
	onStatus func(string)

	mu             sync.Mutex
	conn           *websocket.Conn
	state          model.AppState
	username       string
	role           string
	viewingIndex   int
	heldLocks      []HeldLock
	reconnectTries int
	closed         bool
}

// NewSession builds a session. A cached snapshot, when present, restores the
// client identity, username, role, and held-lock list, and pre-populates the
// mirror so the view renders before the first server push.
func NewSession(cfg Config) *Session {
	s := &Session{
		url:      cfg.URL,
		clientID: uuid.NewString(),
		log:      cfg.Log.With().Str("component", "client").Logger(),
		cache:    NewCache(cfg.CachePath),
		onState:  cfg.OnState,
		onStatus: cfg.OnStatus,
		state:    model.NewAppState(),
		username: cfg.Username,
		role:     cfg.Role,
	}
	if s.cache != nil {
		if snapshot, ok := s.cache.Load(); ok {
			if snapshot.ClientID != "" {
				s.clientID = snapshot.ClientID
			}
			if s.username == "" {
				s.username = snapshot.CurrentUsername
			}
			if s.role == "" {
				s.role = snapshot.CurrentRole
			}
			if len(snapshot.Collections) > 0 {
				s.state = model.AppState{
					Collections:            snapshot.Collections,
					CurrentCollectionIndex: snapshot.CurrentCollectionIndex,
				}
				s.viewingIndex = snapshot.CurrentCollectionIndex
			}
			s.heldLocks = snapshot.LockedQuestions
		}
	}
	return s
}

// ClientID returns the session's lock-ownership identity.
func (s *Session) ClientID() string { return s.clientID }

// State returns a copy of the local mirror.
func (s *Session) State() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Run connects and keeps the session alive until ctx is done or Close is
// called. Reconnects use a linear back-off, attempts×1s capped at 10s, with
// the counter reset after every successful open.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err == nil {
			s.readLoop()
		} else {
			s.log.Debug().Err(err).Msg("Dial failed")
		}
		s.dropConn()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		tries := s.reconnectTries
		s.reconnectTries++
		s.mu.Unlock()

		delay := reconnectDelay(tries)
		s.status(fmt.Sprintf("Disconnected. Reconnecting in %d seconds...", int(delay/time.Second)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Session) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.reconnectTries = 0
	s.mu.Unlock()

	s.status("Connected to server")

	// The server pushes INITIAL_STATE unprompted; requesting a FULL_STATE as
	// well makes reconnects after missed broadcasts explicit.
	return s.send(protocol.RequestState{
		Type:     protocol.TypeRequestState,
		ClientID: s.clientID,
	})
}

// readLoop applies server messages until the connection drops.
func (s *Session) readLoop() {
	for {
		conn := s.currentConn()
		if conn == nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("Connection closed")
			return
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Debug().Err(err).Msg("Broadcast dropped")
			continue
		}
		s.applyBroadcast(msg)
	}
}

// applyBroadcast replaces the mirror wholesale. There is no merge: a client's
// own pending edit comes back through this same path like any remote change.
func (s *Session) applyBroadcast(msg protocol.ServerMessage) {
	switch msg.Type {
	case protocol.MessageInitialState, protocol.MessageFullState, protocol.MessageStateUpdate:
	default:
		return
	}

	s.mu.Lock()
	s.state = msg.State
	if s.viewingIndex >= len(s.state.Collections) {
		s.viewingIndex = s.state.CurrentCollectionIndex
	}
	snapshot := s.state.Clone()
	s.saveCacheLocked()
	s.mu.Unlock()

	if s.onState != nil {
		s.onState(snapshot)
	}
}

// ─── Command emission ───────────────────────────────────────────────

// LockQuestion claims the lock on a question in the viewed collection and
// records it locally for later release. The claim is advisory until it comes
// back in a broadcast.
func (s *Session) LockQuestion(index int) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	s.mu.Lock()
	collectionIndex := s.viewingIndex
	s.heldLocks = append(s.heldLocks, HeldLock{CollectionIndex: collectionIndex, QuestionIndex: index})
	s.saveCacheLocked()
	s.mu.Unlock()

	return s.send(protocol.LockQuestion{
		Type:            protocol.TypeLockQuestion,
		Index:           index,
		CollectionIndex: collectionIndex,
		ClientID:        s.clientID,
		Username:        s.currentUsername(),
	})
}

// UnlockQuestion releases a lock in the viewed collection.
func (s *Session) UnlockQuestion(index int) error {
	s.mu.Lock()
	collectionIndex := s.viewingIndex
	s.forgetLockLocked(collectionIndex, index)
	s.saveCacheLocked()
	s.mu.Unlock()

	return s.send(protocol.UnlockQuestion{
		Type:            protocol.TypeUnlockQuestion,
		Index:           index,
		CollectionIndex: collectionIndex,
		ClientID:        s.clientID,
		Username:        s.currentUsername(),
	})
}

// UpdateQuestion sends a wholesale replacement for a question this session
// has locked. field names the edited part for the activity log.
func (s *Session) UpdateQuestion(index int, field string, question model.Question) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	s.mu.Lock()
	collectionIndex := s.viewingIndex
	held := s.holdsLockLocked(collectionIndex, index)
	s.mu.Unlock()
	if !held {
		return ErrLockNotHeld
	}

	return s.send(protocol.UpdateQuestion{
		Type:            protocol.TypeUpdateQuestion,
		Index:           index,
		Question:        question,
		CollectionIndex: collectionIndex,
		ClientID:        s.clientID,
		Username:        s.currentUsername(),
		Field:           field,
	})
}

// DeleteQuestion deletes a question this session has locked.
func (s *Session) DeleteQuestion(index int) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	s.mu.Lock()
	collectionIndex := s.viewingIndex
	held := s.holdsLockLocked(collectionIndex, index)
	if held {
		s.forgetLockLocked(collectionIndex, index)
		s.saveCacheLocked()
	}
	s.mu.Unlock()
	if !held {
		return ErrLockNotHeld
	}

	return s.send(protocol.DeleteQuestion{
		Type:            protocol.TypeDeleteQuestion,
		Index:           index,
		CollectionIndex: collectionIndex,
		ClientID:        s.clientID,
		Username:        s.currentUsername(),
	})
}

// AddQuestions uploads parsed questions into the viewed collection.
func (s *Session) AddQuestions(questions []model.Question, filename string) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	return s.send(protocol.AddQuestions{
		Type:            protocol.TypeAddQuestions,
		Questions:       questions,
		CollectionIndex: s.viewedCollection(),
		Filename:        filename,
		Username:        s.currentUsername(),
		ClientID:        s.clientID,
	})
}

// CreateCollection uploads parsed questions as a new collection.
func (s *Session) CreateCollection(metadata model.CollectionMetadata, questions []model.Question, filename string) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	return s.send(protocol.CreateCollection{
		Type:      protocol.TypeCreateCollection,
		Metadata:  metadata,
		Questions: questions,
		Filename:  filename,
		Username:  s.currentUsername(),
		ClientID:  s.clientID,
	})
}

// DeleteCollection asks the server to remove a collection. The server
// refuses to drop below one collection.
func (s *Session) DeleteCollection(index int) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	return s.send(protocol.DeleteCollection{
		Type:            protocol.TypeDeleteCollection,
		CollectionIndex: index,
		Username:        s.currentUsername(),
	})
}

// ClearLog empties the viewed collection's activity log.
func (s *Session) ClearLog() error {
	return s.send(protocol.ClearLog{
		Type:            protocol.TypeClearLog,
		CollectionIndex: s.viewedCollection(),
	})
}

// SetRole records the chosen role and announces it in the activity log.
func (s *Session) SetRole(role string) error {
	if err := s.requireUsername(); err != nil {
		return err
	}
	s.mu.Lock()
	s.role = role
	s.saveCacheLocked()
	s.mu.Unlock()

	entry := model.NewActivityEntry(time.Now(), "user_role_set_"+role, s.currentUsername())
	entry.Role = role
	return s.send(protocol.AddActivity{
		Type:            protocol.TypeAddActivity,
		Entry:           entry,
		CollectionIndex: s.viewedCollection(),
	})
}

// SetUsername sets the username required by editing actions.
func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	s.username = username
	s.saveCacheLocked()
	s.mu.Unlock()
}

// SwitchCollection changes the locally viewed collection, releasing any locks
// held in the one being left.
func (s *Session) SwitchCollection(index int) {
	s.mu.Lock()
	leaving := s.viewingIndex
	var toRelease []HeldLock
	for _, lock := range s.heldLocks {
		if lock.CollectionIndex == leaving {
			toRelease = append(toRelease, lock)
		}
	}
	s.viewingIndex = index
	s.mu.Unlock()

	for _, lock := range toRelease {
		s.releaseLock(lock)
	}

	s.mu.Lock()
	s.saveCacheLocked()
	s.mu.Unlock()
}

// UnlockAll releases every lock this session believes it holds, best-effort:
// when the channel is down the unlock is skipped, not queued, and the server
// keeps the lock until this client reconnects and re-locks or another path
// clears it.
func (s *Session) UnlockAll() {
	s.mu.Lock()
	locks := s.heldLocks
	s.heldLocks = nil
	s.saveCacheLocked()
	s.mu.Unlock()

	for _, lock := range locks {
		err := s.send(protocol.UnlockQuestion{
			Type:            protocol.TypeUnlockQuestion,
			Index:           lock.QuestionIndex,
			CollectionIndex: lock.CollectionIndex,
			ClientID:        s.clientID,
			Username:        s.currentUsername(),
		})
		if err != nil {
			s.log.Debug().Err(err).Int("index", lock.QuestionIndex).Msg("Unlock skipped")
		}
	}
}

// Close releases held locks best-effort and shuts the session down.
func (s *Session) Close() {
	s.UnlockAll()

	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// ─── Internals ──────────────────────────────────────────────────────

func (s *Session) releaseLock(lock HeldLock) {
	s.mu.Lock()
	s.forgetLockLocked(lock.CollectionIndex, lock.QuestionIndex)
	s.mu.Unlock()

	err := s.send(protocol.UnlockQuestion{
		Type:            protocol.TypeUnlockQuestion,
		Index:           lock.QuestionIndex,
		CollectionIndex: lock.CollectionIndex,
		ClientID:        s.clientID,
		Username:        s.currentUsername(),
	})
	if err != nil {
		s.log.Debug().Err(err).Int("index", lock.QuestionIndex).Msg("Unlock skipped")
	}
}

func (s *Session) holdsLockLocked(collectionIndex, questionIndex int) bool {
	for _, lock := range s.heldLocks {
		if lock.CollectionIndex == collectionIndex && lock.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

func (s *Session) forgetLockLocked(collectionIndex, questionIndex int) {
	kept := s.heldLocks[:0]
	for _, lock := range s.heldLocks {
		if lock.CollectionIndex != collectionIndex || lock.QuestionIndex != questionIndex {
			kept = append(kept, lock)
		}
	}
	s.heldLocks = kept
}

func (s *Session) requireUsername() error {
	if s.currentUsername() == "" {
		return ErrUsernameRequired
	}
	return nil
}

func (s *Session) currentUsername() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) viewedCollection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewingIndex
}

func (s *Session) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) dropConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// send marshals and writes one command. Writes from the run loop and from
// command emitters are serialized by taking s.mu for the whole write.
func (s *Session) send(cmd protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(cmd)
}

// saveCacheLocked persists the session snapshot. Callers must hold s.mu.
func (s *Session) saveCacheLocked() {
	if s.cache == nil {
		return
	}
	err := s.cache.Save(Snapshot{
		Collections:            s.state.Collections,
		CurrentCollectionIndex: s.state.CurrentCollectionIndex,
		CurrentUsername:        s.username,
		CurrentRole:            s.role,
		LockedQuestions:        s.heldLocks,
		ClientID:               s.clientID,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("Cache save failed")
	}
}

func (s *Session) status(message string) {
	if s.onStatus != nil {
		s.onStatus(message)
	}
}
