package model

// AppState is the authoritative application state. A single instance lives in
// the server process for its whole lifetime; clients hold read-only mirrors
// refreshed wholesale on every broadcast.
type AppState struct {
	Collections            []Collection `json:"collections"`
	CurrentCollectionIndex int          `json:"currentCollectionIndex"`
}

// Collection is a named, independently locked and logged bucket of questions.
type Collection struct {
	Name        string             `json:"name"`
	Metadata    CollectionMetadata `json:"metadata"`
	Questions   []Question         `json:"questions"`
	Locks       map[int]Lock       `json:"locks"`
	ActivityLog []ActivityEntry    `json:"activityLog"`
}

// CollectionMetadata holds the free-text tags set once at collection creation.
type CollectionMetadata struct {
	Year string `json:"year"`
	Type string `json:"type"`
	Unit string `json:"unit"`
}

// Question is a single multiple-choice question under review.
type Question struct {
	Question         string          `json:"question"`
	Choices          []string        `json:"choices"`
	CorrectAnswer    string          `json:"correct_answer"`
	OriginalQuestion string          `json:"original_question"`
	OriginalAnswer   string          `json:"original_answer"`
	Tag              string          `json:"tag"`
	FeedbackImages   []FeedbackImage `json:"feedback_images"`
}

// FeedbackImage is a reviewer-attached image, carried inline as a data URL.
type FeedbackImage struct {
	ImageData string `json:"image_data"`
	Filename  string `json:"filename"`
}

// Lock is an advisory claim on a single question index. Ownership is by
// client ID, not username — two sessions with the same username are distinct
// lock owners.
type Lock struct {
	ClientID string `json:"clientId"`
	Username string `json:"username"`
}

// DefaultCollectionName is the name of the collection seeded at startup.
const DefaultCollectionName = "Default"

// NewAppState returns the startup state: one empty default collection.
// The server never lets the collection count drop below one.
func NewAppState() AppState {
	return AppState{
		Collections: []Collection{NewCollection(DefaultCollectionName, CollectionMetadata{}, nil)},
	}
}

// NewCollection builds a collection with initialized locks and log so the
// JSON wire shape is always {} and [], never null.
func NewCollection(name string, metadata CollectionMetadata, questions []Question) Collection {
	if questions == nil {
		questions = []Question{}
	}
	return Collection{
		Name:        name,
		Metadata:    metadata,
		Questions:   questions,
		Locks:       map[int]Lock{},
		ActivityLog: []ActivityEntry{},
	}
}

// Clone deep-copies the state so a snapshot can leave the store without
// aliasing the canonical collections.
func (s AppState) Clone() AppState {
	out := AppState{
		Collections:            make([]Collection, len(s.Collections)),
		CurrentCollectionIndex: s.CurrentCollectionIndex,
	}
	for i, c := range s.Collections {
		out.Collections[i] = c.Clone()
	}
	return out
}

// Clone deep-copies a collection, including its lock map and activity log.
func (c Collection) Clone() Collection {
	out := Collection{
		Name:        c.Name,
		Metadata:    c.Metadata,
		Questions:   make([]Question, len(c.Questions)),
		Locks:       make(map[int]Lock, len(c.Locks)),
		ActivityLog: append([]ActivityEntry{}, c.ActivityLog...),
	}
	for i, q := range c.Questions {
		out.Questions[i] = q.Clone()
	}
	for idx, lock := range c.Locks {
		out.Locks[idx] = lock
	}
	return out
}

// Clone deep-copies a question and its feedback images.
func (q Question) Clone() Question {
	out := q
	out.Choices = append([]string{}, q.Choices...)
	out.FeedbackImages = append([]FeedbackImage{}, q.FeedbackImages...)
	return out
}
