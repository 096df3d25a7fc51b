package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OptionKeys are the four answer keys every question carries.
var OptionKeys = []string{"a", "b", "c", "d"}

// Question is one multiple-choice question. Options is keyed by OptionKeys.
type Question struct {
	ID          int               `json:"id"          bson:"id"`
	Text        string            `json:"question"    bson:"question"`
	Options     map[string]string `json:"options"     bson:"options"`
	Answer      string            `json:"answer"      bson:"answer"`
	Explanation string            `json:"explanation" bson:"explanation"`
}

// Quiz is a generated quiz. ShareID is set only once it has been stored for sharing.
type Quiz struct {
	ID         primitive.ObjectID `json:"-"          bson:"_id,omitempty"`
	ShareID    string             `json:"id,omitempty" bson:"-"`
	UserID     string             `json:"userId,omitempty" bson:"user_id"`
	Heading    string             `json:"heading"    bson:"heading"`
	Topic      string             `json:"topic"      bson:"topic"`
	Difficulty string             `json:"difficulty" bson:"difficulty"`
	Questions  []Question         `json:"questions"  bson:"questions"`
	CreatedAt  time.Time          `json:"createdAt"  bson:"created_at"`
}

// QuizConfig describes what to generate.
type QuizConfig struct {
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"   validate:"required,oneof=easy medium hard"`
	NumQuestions int    `json:"numQuestions" validate:"min=1,max=20"`
	SourceType   string `json:"sourceType"   validate:"omitempty,oneof=topic text url youtube"`
	Source       string `json:"source"`
}

// QuizRequest is the JSON body for POST /api/quiz.
type QuizRequest struct {
	Config QuizConfig `json:"config"`
	Share  bool       `json:"share"`
}

// ScoreRequest is the JSON body for POST /api/quiz/{id}/score. Answers maps
// question id to the chosen option key.
type ScoreRequest struct {
	Answers          map[int]string `json:"answers"`
	TimeTakenSeconds int            `json:"timeTakenSeconds" validate:"min=0"`
}

// ReviewItem is one question's outcome in a finished attempt.
type ReviewItem struct {
	QuestionID  int    `json:"questionId"`
	Chosen      string `json:"chosen,omitempty"`
	Answer      string `json:"answer"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

// QuizResult summarises a submitted attempt.
type QuizResult struct {
	Score            int          `json:"score"`
	Total            int          `json:"total"`
	Answered         int          `json:"answered"`
	Accuracy         float64      `json:"accuracy"`
	TimeTakenSeconds int          `json:"timeTakenSeconds"`
	Review           []ReviewItem `json:"review"`
}
