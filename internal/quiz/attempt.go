package quiz

import (
	"errors"
	"sort"
	"time"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// Phase is the lifecycle state of an attempt.
type Phase int

const (
	NotStarted Phase = iota
	InProgress
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

var (
	ErrNotInProgress   = errors.New("quiz: attempt is not in progress")
	ErrAlreadyActive   = errors.New("quiz: attempt already started")
	ErrNotFinished     = errors.New("quiz: attempt is not finished")
	ErrOutOfRange      = errors.New("quiz: question index out of range")
	ErrUnknownOption   = errors.New("quiz: unknown option")
	ErrUnknownQuestion = errors.New("quiz: unknown question")
)

// Attempt tracks one pass through a quiz. It is not safe for concurrent use.
//
// NotStarted -> InProgress -> Finished, with Reviewing toggled inside
// Finished. Reset returns to NotStarted from anywhere.
type Attempt struct {
	quiz  *models.Quiz
	clock func() time.Time

	phase     Phase
	reviewing bool
	current   int
	answers   map[int]string
	visited   map[int]struct{}
	startedAt time.Time
	elapsed   time.Duration
	score     int
}

func NewAttempt(q *models.Quiz) *Attempt {
	a := &Attempt{quiz: q, clock: time.Now}
	a.Reset()
	return a
}

// Reset clears answers, visited questions, score and timer.
func (a *Attempt) Reset() {
	a.phase = NotStarted
	a.reviewing = false
	a.current = 0
	a.answers = make(map[int]string)
	a.visited = make(map[int]struct{})
	a.startedAt = time.Time{}
	a.elapsed = 0
	a.score = 0
}

// Start begins the attempt at the first question and starts the timer.
func (a *Attempt) Start() error {
	if a.phase != NotStarted {
		return ErrAlreadyActive
	}
	a.phase = InProgress
	a.startedAt = a.clock()
	a.visit(0)
	return nil
}

func (a *Attempt) visit(i int) {
	a.current = i
	a.visited[i] = struct{}{}
}

// Next moves forward, staying on the last question.
func (a *Attempt) Next() error {
	if a.phase != InProgress {
		return ErrNotInProgress
	}
	if a.current < len(a.quiz.Questions)-1 {
		a.visit(a.current + 1)
	}
	return nil
}

// Previous moves back, staying on the first question.
func (a *Attempt) Previous() error {
	if a.phase != InProgress {
		return ErrNotInProgress
	}
	if a.current > 0 {
		a.visit(a.current - 1)
	}
	return nil
}

// Jump moves to question i.
func (a *Attempt) Jump(i int) error {
	if a.phase != InProgress {
		return ErrNotInProgress
	}
	if i < 0 || i >= len(a.quiz.Questions) {
		return ErrOutOfRange
	}
	a.visit(i)
	return nil
}

// Answer records key for the current question, replacing any earlier answer.
func (a *Attempt) Answer(key string) error {
	if a.phase != InProgress {
		return ErrNotInProgress
	}
	if a.current >= len(a.quiz.Questions) {
		return ErrOutOfRange
	}
	q := a.quiz.Questions[a.current]
	if _, ok := q.Options[key]; !ok {
		return ErrUnknownOption
	}
	a.answers[q.ID] = key
	return nil
}

// Submit finishes the attempt, freezes the timer and scores it. Unanswered
// questions count as wrong.
func (a *Attempt) Submit() (models.QuizResult, error) {
	if a.phase != InProgress {
		return models.QuizResult{}, ErrNotInProgress
	}
	a.elapsed = a.clock().Sub(a.startedAt)
	a.phase = Finished

	a.score = 0
	for _, q := range a.quiz.Questions {
		if chosen, ok := a.answers[q.ID]; ok && chosen == q.Answer {
			a.score++
		}
	}
	return a.Result(), nil
}

// ToggleReview flips review mode on a finished attempt.
func (a *Attempt) ToggleReview() error {
	if a.phase != Finished {
		return ErrNotFinished
	}
	a.reviewing = !a.reviewing
	return nil
}

func (a *Attempt) Phase() Phase    { return a.phase }
func (a *Attempt) Reviewing() bool { return a.reviewing }
func (a *Attempt) Current() int    { return a.current }
func (a *Attempt) Score() int      { return a.score }

// Answers returns a copy of the recorded answers keyed by question id.
func (a *Attempt) Answers() map[int]string {
	out := make(map[int]string, len(a.answers))
	for k, v := range a.answers {
		out[k] = v
	}
	return out
}

// Visited returns the visited question indices in ascending order.
func (a *Attempt) Visited() []int {
	out := make([]int, 0, len(a.visited))
	for i := range a.visited {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Elapsed is the running time while in progress and the frozen time once finished.
func (a *Attempt) Elapsed() time.Duration {
	switch a.phase {
	case InProgress:
		return a.clock().Sub(a.startedAt)
	case Finished:
		return a.elapsed
	default:
		return 0
	}
}

// Result summarises the attempt. Review items are filled only once finished.
func (a *Attempt) Result() models.QuizResult {
	res := models.QuizResult{
		Score:            a.score,
		Total:            len(a.quiz.Questions),
		Answered:         len(a.answers),
		TimeTakenSeconds: int(a.Elapsed() / time.Second),
	}
	if res.Total > 0 {
		res.Accuracy = float64(a.score) / float64(res.Total) * 100
	}
	if a.phase != Finished {
		return res
	}
	res.Review = make([]models.ReviewItem, 0, len(a.quiz.Questions))
	for _, q := range a.quiz.Questions {
		chosen, ok := a.answers[q.ID]
		res.Review = append(res.Review, models.ReviewItem{
			QuestionID:  q.ID,
			Chosen:      chosen,
			Answer:      q.Answer,
			Correct:     ok && chosen == q.Answer,
			Explanation: q.Explanation,
		})
	}
	return res
}

// Replay runs a whole attempt from answers keyed by question id and reports
// timeTaken as the frozen timer.
func Replay(q *models.Quiz, answers map[int]string, timeTaken time.Duration) (models.QuizResult, error) {
	index := make(map[int]int, len(q.Questions))
	for i, question := range q.Questions {
		index[question.ID] = i
	}

	start := time.Unix(0, 0)
	a := NewAttempt(q)
	a.clock = func() time.Time { return start }
	if err := a.Start(); err != nil {
		return models.QuizResult{}, err
	}

	ids := make([]int, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		i, ok := index[id]
		if !ok {
			return models.QuizResult{}, ErrUnknownQuestion
		}
		if err := a.Jump(i); err != nil {
			return models.QuizResult{}, err
		}
		if err := a.Answer(answers[id]); err != nil {
			return models.QuizResult{}, err
		}
	}

	a.clock = func() time.Time { return start.Add(timeTaken) }
	return a.Submit()
}
