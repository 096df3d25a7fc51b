// Package quiz generates multiple-choice quizzes with a language model and
// tracks attempts through them.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayush/notsodumb/backend/internal/llm"
	"github.com/ayush/notsodumb/backend/internal/models"
)

// ErrInvalidFormat means the model's output was not a usable quiz. The
// generator never pads or truncates a short or long answer.
var ErrInvalidFormat = errors.New("Invalid quiz format")

// Completer is satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Generator turns a config and optional source material into a quiz.
type Generator struct {
	llm Completer
}

func NewGenerator(c Completer) *Generator {
	return &Generator{llm: c}
}

const systemPrompt = `You write multiple-choice quizzes. Reply with a single JSON object and nothing else:
{"heading": string, "questions": [{"question": string, "options": {"a": string, "b": string, "c": string, "d": string}, "answer": "a"|"b"|"c"|"d", "explanation": string}]}`

func buildPrompt(cfg models.QuizConfig, material string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write exactly %d %s questions", cfg.NumQuestions, cfg.Difficulty)
	if cfg.Topic != "" {
		fmt.Fprintf(&b, " about %q", cfg.Topic)
	}
	b.WriteString(". Each question has four options keyed a to d and exactly one correct answer. ")
	b.WriteString("Give a short heading for the quiz and a one-sentence explanation per answer.")
	if material != "" {
		b.WriteString("\n\nBase every question only on this material:\n\n")
		b.WriteString(material)
	}
	return b.String()
}

type rawQuiz struct {
	Heading   string `json:"heading"`
	Questions []struct {
		Question    string            `json:"question"`
		Options     map[string]string `json:"options"`
		Answer      string            `json:"answer"`
		Explanation string            `json:"explanation"`
	} `json:"questions"`
}

// Generate asks the model for a quiz and validates its shape.
func (g *Generator) Generate(ctx context.Context, cfg models.QuizConfig, material string) (*models.Quiz, error) {
	out, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []models.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(cfg, material)},
		},
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	return Parse(out, cfg)
}

// Parse decodes and validates model output against cfg.
func Parse(out string, cfg models.QuizConfig) (*models.Quiz, error) {
	var raw rawQuiz
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(raw.Questions) != cfg.NumQuestions {
		return nil, fmt.Errorf("%w: want %d questions, got %d", ErrInvalidFormat, cfg.NumQuestions, len(raw.Questions))
	}

	q := &models.Quiz{
		Heading:    strings.TrimSpace(raw.Heading),
		Topic:      cfg.Topic,
		Difficulty: cfg.Difficulty,
		Questions:  make([]models.Question, 0, len(raw.Questions)),
	}
	if q.Heading == "" {
		q.Heading = cfg.Topic
	}

	for i, rq := range raw.Questions {
		opts := make(map[string]string, len(models.OptionKeys))
		for k, v := range rq.Options {
			opts[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		if len(opts) != len(models.OptionKeys) {
			return nil, fmt.Errorf("%w: question %d has %d options", ErrInvalidFormat, i+1, len(opts))
		}
		for _, k := range models.OptionKeys {
			if opts[k] == "" {
				return nil, fmt.Errorf("%w: question %d missing option %q", ErrInvalidFormat, i+1, k)
			}
		}
		answer := strings.ToLower(strings.TrimSpace(rq.Answer))
		if _, ok := opts[answer]; !ok {
			return nil, fmt.Errorf("%w: question %d answer %q is not an option", ErrInvalidFormat, i+1, rq.Answer)
		}
		if strings.TrimSpace(rq.Question) == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidFormat, i+1)
		}

		q.Questions = append(q.Questions, models.Question{
			ID:          i + 1,
			Text:        strings.TrimSpace(rq.Question),
			Options:     opts,
			Answer:      answer,
			Explanation: strings.TrimSpace(rq.Explanation),
		})
	}
	return q, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
