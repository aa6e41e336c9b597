package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Question types a client can answer. Each has its own answer shape,
// validated at the use-case boundary before anything mutates.
const (
	QuestionTypeSingle   = "single"
	QuestionTypeMultiple = "multiple"
	QuestionTypeInput    = "input"
	QuestionTypeForm     = "form"
)

// AnswerRequest is the unified answer submission. Answer stays raw until
// the question type selects its shape.
type AnswerRequest struct {
	SessionID    string          `json:"sessionId"`
	NodeID       string          `json:"nodeId"`
	QuestionType string          `json:"questionType"`
	Answer       json.RawMessage `json:"answer"`
	User         string          `json:"user,omitempty"`
}

// FormEntry is one field of a structured form answer.
type FormEntry struct {
	Question string   `json:"question"`
	Answer   []string `json:"answer"`
}

// ValidateAnswer checks the answer payload against the declared question
// type: single and input take a non-empty string, multiple a non-empty
// string list, form a non-empty list of answered entries.
func ValidateAnswer(req *AnswerRequest) bool {
	if req == nil || len(req.Answer) == 0 {
		return false
	}

	switch req.QuestionType {
	case QuestionTypeSingle, QuestionTypeInput:
		var answer string
		if err := json.Unmarshal(req.Answer, &answer); err != nil {
			return false
		}
		return strings.TrimSpace(answer) != ""

	case QuestionTypeMultiple:
		var answers []string
		if err := json.Unmarshal(req.Answer, &answers); err != nil || len(answers) == 0 {
			return false
		}
		for _, a := range answers {
			if strings.TrimSpace(a) == "" {
				return false
			}
		}
		return true

	case QuestionTypeForm:
		var entries []FormEntry
		if err := json.Unmarshal(req.Answer, &entries); err != nil || len(entries) == 0 {
			return false
		}
		for _, e := range entries {
			if strings.TrimSpace(e.Question) == "" || len(e.Answer) == 0 {
				return false
			}
		}
		return true

	default:
		return false
	}
}

func flattenAnswer(req *AnswerRequest) string {
	switch req.QuestionType {
	case QuestionTypeSingle, QuestionTypeInput:
		var answer string
		_ = json.Unmarshal(req.Answer, &answer)
		return answer

	case QuestionTypeMultiple:
		var answers []string
		_ = json.Unmarshal(req.Answer, &answers)
		return strings.Join(answers, "、")

	case QuestionTypeForm:
		var entries []FormEntry
		_ = json.Unmarshal(req.Answer, &entries)
		parts := make([]string, 0, len(entries))
		for _, e := range entries {
			parts = append(parts, fmt.Sprintf("%s=%s", e.Question, strings.Join(e.Answer, "、")))
		}
		return strings.Join(parts, "; ")

	default:
		return string(req.Answer)
	}
}
