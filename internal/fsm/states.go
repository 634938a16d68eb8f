package fsm

import (
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
)

type PhaseKind string

const (
	PhaseContent       PhaseKind = "content"
	PhaseQuizIntro     PhaseKind = "quiz_intro"
	PhaseQuizAnswering PhaseKind = "quiz_answering"
	PhaseResults       PhaseKind = "results"
)

// Phase is one state of a quiz module session. Each implementation carries
// only the data that is valid while the session is in that state.
type Phase interface {
	Kind() PhaseKind
	isPhase()
}

type Content struct{}

type QuizIntro struct{}

// QuizAnswering holds the answers given so far. Index points at the question
// to show next and equals the question count once every question is answered.
type QuizAnswering struct {
	StartedAt time.Time
	Index     int
	Answers   map[string]models.Answer
}

type Results struct {
	Attempt models.Attempt
}

func (Content) Kind() PhaseKind       { return PhaseContent }
func (QuizIntro) Kind() PhaseKind     { return PhaseQuizIntro }
func (QuizAnswering) Kind() PhaseKind { return PhaseQuizAnswering }
func (Results) Kind() PhaseKind       { return PhaseResults }

func (Content) isPhase()       {}
func (QuizIntro) isPhase()     {}
func (QuizAnswering) isPhase() {}
func (Results) isPhase()       {}

// Outcome reports what an action did. Rejections are outcomes, not errors.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoOp
	OutcomeBlocked
	OutcomeIncomplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Initial picks where a session starts: straight at the quiz intro once the
// content has been read, otherwise at the content.
func Initial(record models.ProgressRecord) Phase {
	if record.CompletionPercentage >= 100 {
		return QuizIntro{}
	}
	return Content{}
}

func ReadContent(p Phase) (Phase, Outcome) {
	switch p.(type) {
	case Content:
		return QuizIntro{}, OutcomeApplied
	case QuizIntro:
		return p, OutcomeNoOp
	default:
		return p, OutcomeBlocked
	}
}

func Begin(p Phase, now time.Time) (Phase, Outcome) {
	switch p.(type) {
	case QuizIntro:
		return QuizAnswering{StartedAt: now, Answers: map[string]models.Answer{}}, OutcomeApplied
	case QuizAnswering:
		return p, OutcomeNoOp
	default:
		return p, OutcomeBlocked
	}
}

// Answer records an answer and moves Index to the next unanswered question.
// The answer map is copied so earlier phase values stay untouched.
func Answer(p Phase, questions []models.QuizQuestion, questionID string, answer models.Answer) (Phase, Outcome) {
	cur, ok := p.(QuizAnswering)
	if !ok {
		return p, OutcomeBlocked
	}

	pos := -1
	for i := range questions {
		if questions[i].ID == questionID {
			pos = i
			break
		}
	}
	if pos < 0 || !answer.ValidFor(&questions[pos]) {
		return p, OutcomeBlocked
	}

	answers := make(map[string]models.Answer, len(cur.Answers)+1)
	for id, a := range cur.Answers {
		answers[id] = a
	}
	answers[questionID] = answer

	return QuizAnswering{
		StartedAt: cur.StartedAt,
		Index:     nextUnanswered(questions, answers, pos),
		Answers:   answers,
	}, OutcomeApplied
}

func nextUnanswered(questions []models.QuizQuestion, answers map[string]models.Answer, from int) int {
	n := len(questions)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if _, ok := answers[questions[i].ID]; !ok {
			return i
		}
	}
	return n
}

// Missing lists question ids without an answer, in question order.
func Missing(p QuizAnswering, questions []models.QuizQuestion) []string {
	var missing []string
	for _, q := range questions {
		if a, ok := p.Answers[q.ID]; !ok || a.IsZero() {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

func Complete(p QuizAnswering, questions []models.QuizQuestion) bool {
	return len(Missing(p, questions)) == 0
}

// Submit scores a complete answer set and moves to results. Submitting again
// from results is a no-op that keeps the original attempt.
func Submit(p Phase, questions []models.QuizQuestion, score func(QuizAnswering) models.Attempt) (Phase, Outcome) {
	switch cur := p.(type) {
	case Results:
		return p, OutcomeNoOp
	case QuizAnswering:
		if !Complete(cur, questions) {
			return p, OutcomeIncomplete
		}
		return Results{Attempt: score(cur)}, OutcomeApplied
	default:
		return p, OutcomeBlocked
	}
}

func Review(p Phase) (Phase, Outcome) {
	switch p.(type) {
	case Results:
		return Content{}, OutcomeApplied
	case Content:
		return p, OutcomeNoOp
	default:
		return p, OutcomeBlocked
	}
}

// Retry is allowed only after a failed attempt. Retrying a passed attempt
// leaves the results in place.
func Retry(p Phase) (Phase, Outcome) {
	cur, ok := p.(Results)
	if !ok {
		return p, OutcomeBlocked
	}
	if cur.Attempt.Passed {
		return p, OutcomeNoOp
	}
	return QuizIntro{}, OutcomeApplied
}

// Abandon drops an unfinished answer set without producing an attempt.
func Abandon(p Phase) (Phase, Outcome) {
	if _, ok := p.(QuizAnswering); ok {
		return QuizIntro{}, OutcomeApplied
	}
	return p, OutcomeNoOp
}
