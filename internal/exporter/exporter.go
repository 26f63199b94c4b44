// Package exporter serializes a collection to the review CSV layout.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"

	"github.com/mcqlab/mcq-review/internal/model"
)

// header is the fixed CSV column order consumed by downstream tooling.
var header = []string{
	"year", "type", "unit",
	"question", "choices", "answer",
	"original_question", "original_answer", "tag", "feedback",
}

// WriteCSV renders one collection as CSV. The choices and feedback columns
// carry JSON arrays (choices as strings, feedback as image filenames), so a
// row stays a flat record while keeping list structure intact.
func WriteCSV(collection model.Collection) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, question := range collection.Questions {
		choices, err := json.Marshal(question.Choices)
		if err != nil {
			return nil, err
		}
		filenames := make([]string, 0, len(question.FeedbackImages))
		for _, img := range question.FeedbackImages {
			filenames = append(filenames, img.Filename)
		}
		feedback, err := json.Marshal(filenames)
		if err != nil {
			return nil, err
		}

		row := []string{
			collection.Metadata.Year,
			collection.Metadata.Type,
			collection.Metadata.Unit,
			question.Question,
			string(choices),
			question.CorrectAnswer,
			question.OriginalQuestion,
			question.OriginalAnswer,
			question.Tag,
			string(feedback),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
