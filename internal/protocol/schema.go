package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mcqlab/mcq-review/internal/model"
)

// ─── Commands (Client → Server) ─────────────────────────────────────

type CommandType string

const (
	TypeLockQuestion     CommandType = "LOCK_QUESTION"
	TypeUnlockQuestion   CommandType = "UNLOCK_QUESTION"
	TypeUpdateQuestion   CommandType = "UPDATE_QUESTION"
	TypeDeleteQuestion   CommandType = "DELETE_QUESTION"
	TypeAddQuestions     CommandType = "ADD_QUESTIONS"
	TypeCreateCollection CommandType = "CREATE_COLLECTION"
	TypeDeleteCollection CommandType = "DELETE_COLLECTION"
	TypeAddActivity      CommandType = "ADD_ACTIVITY"
	TypeClearLog         CommandType = "CLEAR_LOG"
	TypeRequestState     CommandType = "REQUEST_STATE"
)

// envelope is used to peek at the command type before full parsing.
type envelope struct {
	Type CommandType `json:"type"`
}

// Command is the closed set of decoded client commands.
type Command interface {
	CommandType() CommandType
}

// LockQuestion claims the advisory lock on a question index. Re-locking an
// index already owned by the same client is idempotent.
type LockQuestion struct {
	Type            CommandType `json:"type"`
	Index           int         `json:"index"`
	CollectionIndex int         `json:"collectionIndex"`
	ClientID        string      `json:"clientId"`
	Username        string      `json:"username"`
}

// UnlockQuestion releases a lock held by the issuing client.
type UnlockQuestion struct {
	Type            CommandType `json:"type"`
	Index           int         `json:"index"`
	CollectionIndex int         `json:"collectionIndex"`
	ClientID        string      `json:"clientId"`
	Username        string      `json:"username"`
}

// UpdateQuestion replaces a question wholesale. Field names which part the
// user edited; it only feeds the activity log.
type UpdateQuestion struct {
	Type            CommandType    `json:"type"`
	Index           int            `json:"index"`
	Question        model.Question `json:"question"`
	CollectionIndex int            `json:"collectionIndex"`
	ClientID        string         `json:"clientId"`
	Username        string         `json:"username"`
	Field           string         `json:"field"`
}

// DeleteQuestion removes a question the issuing client has locked.
type DeleteQuestion struct {
	Type            CommandType `json:"type"`
	Index           int         `json:"index"`
	CollectionIndex int         `json:"collectionIndex"`
	ClientID        string      `json:"clientId"`
	Username        string      `json:"username"`
}

// AddQuestions appends parsed questions to an existing collection.
type AddQuestions struct {
	Type            CommandType      `json:"type"`
	Questions       []model.Question `json:"questions"`
	CollectionIndex int              `json:"collectionIndex"`
	Filename        string           `json:"filename"`
	Username        string           `json:"username"`
	ClientID        string           `json:"clientId"`
}

// CreateCollection appends a new collection and makes it current.
type CreateCollection struct {
	Type      CommandType              `json:"type"`
	Metadata  model.CollectionMetadata `json:"metadata"`
	Questions []model.Question         `json:"questions"`
	Filename  string                   `json:"filename"`
	Username  string                   `json:"username"`
	ClientID  string                   `json:"clientId"`
}

// DeleteCollection removes a collection. The last collection cannot be
// deleted.
type DeleteCollection struct {
	Type            CommandType `json:"type"`
	CollectionIndex int         `json:"collectionIndex"`
	Username        string      `json:"username"`
}

// AddActivity appends a client-authored entry (role selection, CSV export)
// to a collection's activity log.
type AddActivity struct {
	Type            CommandType         `json:"type"`
	Entry           model.ActivityEntry `json:"entry"`
	CollectionIndex int                 `json:"collectionIndex"`
}

// ClearLog empties a collection's activity log.
type ClearLog struct {
	Type            CommandType `json:"type"`
	CollectionIndex int         `json:"collectionIndex"`
}

// RequestState asks the server for a fresh full-state push. Clients send it
// on every (re)connect.
type RequestState struct {
	Type     CommandType `json:"type"`
	ClientID string      `json:"clientId"`
}

func (c LockQuestion) CommandType() CommandType     { return TypeLockQuestion }
func (c UnlockQuestion) CommandType() CommandType   { return TypeUnlockQuestion }
func (c UpdateQuestion) CommandType() CommandType   { return TypeUpdateQuestion }
func (c DeleteQuestion) CommandType() CommandType   { return TypeDeleteQuestion }
func (c AddQuestions) CommandType() CommandType     { return TypeAddQuestions }
func (c CreateCollection) CommandType() CommandType { return TypeCreateCollection }
func (c DeleteCollection) CommandType() CommandType { return TypeDeleteCollection }
func (c AddActivity) CommandType() CommandType      { return TypeAddActivity }
func (c ClearLog) CommandType() CommandType         { return TypeClearLog }
func (c RequestState) CommandType() CommandType     { return TypeRequestState }

// DecodeCommand decodes a raw wire message into its command variant. Unknown
// types and malformed payloads return an error; callers drop the message and
// keep the connection open.
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		cmd Command
		err error
	)
	switch env.Type {
	case TypeLockQuestion:
		var c LockQuestion
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeUnlockQuestion:
		var c UnlockQuestion
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeUpdateQuestion:
		var c UpdateQuestion
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeDeleteQuestion:
		var c DeleteQuestion
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeAddQuestions:
		var c AddQuestions
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeCreateCollection:
		var c CreateCollection
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeDeleteCollection:
		var c DeleteCollection
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeAddActivity:
		var c AddActivity
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeClearLog:
		var c ClearLog
		err = json.Unmarshal(raw, &c)
		cmd = c
	case TypeRequestState:
		var c RequestState
		err = json.Unmarshal(raw, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("unknown command type: %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return cmd, nil
}

// ─── Messages (Server → Client) ─────────────────────────────────────

type MessageType string

const (
	// MessageInitialState is pushed once, immediately after a client connects.
	MessageInitialState MessageType = "INITIAL_STATE"
	// MessageFullState answers an explicit REQUEST_STATE.
	MessageFullState MessageType = "FULL_STATE"
	// MessageStateUpdate follows every accepted mutation.
	MessageStateUpdate MessageType = "STATE_UPDATE"
)

// ServerMessage is the single server→client envelope. The entire state rides
// on every message; there is no delta encoding.
type ServerMessage struct {
	Type      MessageType    `json:"type"`
	State     model.AppState `json:"state"`
	Timestamp int64          `json:"timestamp,omitempty"`
}
