package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcqlab/mcq-review/internal/model"
)

func TestDecodeLockQuestion(t *testing.T) {
	raw := []byte(`{"type":"LOCK_QUESTION","index":2,"collectionIndex":0,"clientId":"a1","username":"alice"}`)

	cmd, err := DecodeCommand(raw)
	require.NoError(t, err)

	lock, ok := cmd.(LockQuestion)
	require.True(t, ok)
	assert.Equal(t, 2, lock.Index)
	assert.Equal(t, 0, lock.CollectionIndex)
	assert.Equal(t, "a1", lock.ClientID)
	assert.Equal(t, "alice", lock.Username)
	assert.Equal(t, TypeLockQuestion, cmd.CommandType())
}

func TestDecodeUpdateQuestionCarriesWholeObject(t *testing.T) {
	raw := []byte(`{
		"type": "UPDATE_QUESTION",
		"index": 0,
		"collectionIndex": 1,
		"clientId": "a1",
		"username": "alice",
		"field": "correct_answer",
		"question": {
			"question": "What is the capital of France?",
			"choices": ["Paris", "Lyon", "Nice", "Lille"],
			"correct_answer": "Paris",
			"original_question": "",
			"original_answer": "",
			"tag": "geo",
			"feedback_images": [{"image_data": "data:image/png;base64,AAAA", "filename": "map.png"}]
		}
	}`)

	cmd, err := DecodeCommand(raw)
	require.NoError(t, err)

	update, ok := cmd.(UpdateQuestion)
	require.True(t, ok)
	assert.Equal(t, "correct_answer", update.Field)
	assert.Equal(t, "Paris", update.Question.CorrectAnswer)
	require.Len(t, update.Question.Choices, 4)
	require.Len(t, update.Question.FeedbackImages, 1)
	assert.Equal(t, "map.png", update.Question.FeedbackImages[0].Filename)
}

func TestDecodeEveryCommandType(t *testing.T) {
	cases := []struct {
		raw  string
		want CommandType
	}{
		{`{"type":"LOCK_QUESTION","index":0,"collectionIndex":0,"clientId":"c","username":"u"}`, TypeLockQuestion},
		{`{"type":"UNLOCK_QUESTION","index":0,"collectionIndex":0,"clientId":"c","username":"u"}`, TypeUnlockQuestion},
		{`{"type":"UPDATE_QUESTION","index":0,"collectionIndex":0,"clientId":"c","username":"u","field":"tag","question":{}}`, TypeUpdateQuestion},
		{`{"type":"DELETE_QUESTION","index":0,"collectionIndex":0,"clientId":"c","username":"u"}`, TypeDeleteQuestion},
		{`{"type":"ADD_QUESTIONS","questions":[],"collectionIndex":0,"filename":"f.txt","username":"u"}`, TypeAddQuestions},
		{`{"type":"CREATE_COLLECTION","metadata":{"year":"2024","type":"Midterm","unit":"U1"},"questions":[],"username":"u"}`, TypeCreateCollection},
		{`{"type":"DELETE_COLLECTION","collectionIndex":1,"username":"u"}`, TypeDeleteCollection},
		{`{"type":"ADD_ACTIVITY","entry":{"timestamp":"t","event":"csv_exported","username":"u"},"collectionIndex":0}`, TypeAddActivity},
		{`{"type":"CLEAR_LOG","collectionIndex":0}`, TypeClearLog},
		{`{"type":"REQUEST_STATE","clientId":"c"}`, TypeRequestState},
	}

	for _, tc := range cases {
		t.Run(string(tc.want), func(t *testing.T) {
			cmd, err := DecodeCommand([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd.CommandType())
		})
	}
}

func TestDecodeUnknownTypeRejected(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"type":"MERGE_STATE","clientId":"c"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command type")
}

func TestDecodeMalformedPayloadRejected(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"type":`,
		"wrong field type": `{"type":"LOCK_QUESTION","index":"two"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestServerMessageWireShape(t *testing.T) {
	state := model.NewAppState()
	msg := ServerMessage{Type: MessageStateUpdate, State: state, Timestamp: 1717243200000}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "STATE_UPDATE", decoded["type"])
	assert.EqualValues(t, 1717243200000, decoded["timestamp"])

	// Locks and activityLog marshal as {} and [], never null.
	wire := string(data)
	assert.Contains(t, wire, `"locks":{}`)
	assert.Contains(t, wire, `"activityLog":[]`)
	assert.Contains(t, wire, `"currentCollectionIndex":0`)
}

func TestLockMapKeysAreStringsOnTheWire(t *testing.T) {
	collection := model.NewCollection("c", model.CollectionMetadata{}, nil)
	collection.Locks[3] = model.Lock{ClientID: "a1", Username: "alice"}

	data, err := json.Marshal(collection)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"3":{"clientId":"a1","username":"alice"}`)

	var decoded model.Collection
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "a1", decoded.Locks[3].ClientID)
}
