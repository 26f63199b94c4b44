// Package parser implements the line-oriented MCQ upload grammar:
//
//	1) question text
//	a) choice
//	b) choice
//	c) choice
//	d) choice
//	i) correct answer
//	(1) original question context
//	(a) original answer
//
// Blocks missing a question line or any of the four choices are skipped, not
// errored — a file yields whatever valid questions it contains.
package parser

import (
	"regexp"
	"strings"

	"github.com/mcqlab/mcq-review/internal/model"
)

var (
	blockStartPattern = regexp.MustCompile(`(?m)^\d+\)`)
	questionPattern   = regexp.MustCompile(`^\d+\)\s*(.+)`)
	choicePattern     = regexp.MustCompile(`^[a-d]\)\s*(.+)`)
)

// choiceCount is fixed by the data model: every question carries exactly
// four choices.
const choiceCount = 4

// Parse extracts questions from raw upload text.
func Parse(content string) []model.Question {
	questions := []model.Question{}
	for _, block := range splitBlocks(content) {
		if question, ok := parseBlock(block); ok {
			questions = append(questions, question)
		}
	}
	return questions
}

// splitBlocks cuts the content at every line that starts a numbered question.
func splitBlocks(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	starts := blockStartPattern.FindAllStringIndex(content, -1)
	if len(starts) == 0 {
		return []string{content}
	}
	blocks := make([]string, 0, len(starts)+1)
	if starts[0][0] > 0 {
		blocks = append(blocks, content[:starts[0][0]])
	}
	for i, start := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blocks = append(blocks, content[start[0]:end])
	}
	return blocks
}

func parseBlock(block string) (model.Question, bool) {
	lines := []string{}
	for _, line := range strings.Split(block, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	// Question, four choices, and at least one metadata line.
	if len(lines) < 6 {
		return model.Question{}, false
	}

	questionMatch := questionPattern.FindStringSubmatch(lines[0])
	if questionMatch == nil {
		return model.Question{}, false
	}

	choices := []string{}
	for i := 1; i <= choiceCount && i < len(lines); i++ {
		if m := choicePattern.FindStringSubmatch(lines[i]); m != nil {
			choices = append(choices, m[1])
		}
	}
	if len(choices) != choiceCount {
		return model.Question{}, false
	}

	question := model.Question{
		Question:       questionMatch[1],
		Choices:        choices,
		Tag:            "",
		FeedbackImages: []model.FeedbackImage{},
	}
	for _, line := range lines[5:] {
		switch {
		case strings.HasPrefix(line, "i)"):
			question.CorrectAnswer = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "(1)"):
			question.OriginalQuestion = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "(a)"):
			question.OriginalAnswer = strings.TrimSpace(line[3:])
		}
	}
	return question, true
}
