package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// NormalizeQuestions converts clarification questions from any accepted shape
// into Question records. Accepted items are a Question, a *Question, a plain
// string (the question text), or a map with "text"/"question", "id",
// "category" and "answer" keys. Items without text are rejected.
func NormalizeQuestions(items []any) ([]types.Question, error) {
	out := make([]types.Question, 0, len(items))
	for i, item := range items {
		q, err := normalizeQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		out = append(out, q)
	}
	return out, nil
}

// ParseQuestions decodes a JSON or YAML list of clarifications and
// normalizes each item. Empty input yields no questions.
func ParseQuestions(data []byte) ([]types.Question, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var items []any
	if json.Valid(data) {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse clarifications: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse clarifications: %w", err)
	}
	return NormalizeQuestions(items)
}

func normalizeQuestion(item any) (types.Question, error) {
	var q types.Question
	switch v := item.(type) {
	case types.Question:
		q = v
	case *types.Question:
		if v == nil {
			return q, fmt.Errorf("nil question")
		}
		q = *v
	case string:
		q.Text = v
	case map[string]any:
		q.ID = stringField(v, "id")
		q.Text = stringField(v, "text")
		if q.Text == "" {
			q.Text = stringField(v, "question")
		}
		q.Category = stringField(v, "category")
		q.Answer = stringField(v, "answer")
	case map[string]string:
		q.ID = v["id"]
		q.Text = v["text"]
		if q.Text == "" {
			q.Text = v["question"]
		}
		q.Category = v["category"]
		q.Answer = v["answer"]
	default:
		return q, fmt.Errorf("unsupported question type %T", item)
	}

	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("question has no text")
	}
	return q, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// FormatQuestions renders answered clarifications for prompt input.
func FormatQuestions(questions []types.Question) string {
	if len(questions) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, q := range questions {
		answer := q.Answer
		if answer == "" {
			answer = "(unanswered)"
		}
		sb.WriteString(fmt.Sprintf("- %s\n  %s\n", q.Text, answer))
	}
	return strings.TrimRight(sb.String(), "\n")
}
