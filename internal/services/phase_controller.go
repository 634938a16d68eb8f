package services

import (
	"log"
	"sync"
	"time"

	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/google/uuid"
)

// PhaseController drives one learner through one quiz module. It advances
// locally and hands persistence to the writer without waiting on it.
// Actions are serialized; a repeated submit sees the results phase.
type PhaseController struct {
	mu     sync.Mutex
	module *models.Module
	userID int64
	phase  fsm.Phase
	record models.ProgressRecord

	writer   writeSubmitter
	onChange func(models.ProgressRecord)
	now      func() time.Time
	newID    func() string
}

func NewPhaseController(module *models.Module, record models.ProgressRecord, writer writeSubmitter) *PhaseController {
	return &PhaseController{
		module: module,
		userID: record.UserID,
		phase:  fsm.Initial(record),
		record: record,
		writer: writer,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (c *PhaseController) Module() *models.Module { return c.module }

func (c *PhaseController) Phase() fsm.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *PhaseController) Record() models.ProgressRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// CurrentQuestion returns the question to show while answering.
func (c *PhaseController) CurrentQuestion() (*models.QuizQuestion, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	answering, ok := c.phase.(fsm.QuizAnswering)
	if !ok || answering.Index >= len(c.module.Questions) {
		return nil, 0, false
	}
	return &c.module.Questions[answering.Index], answering.Index, true
}

// LastAttempt is the attempt shown in the results phase.
func (c *PhaseController) LastAttempt() (models.Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results, ok := c.phase.(fsm.Results)
	if !ok {
		return models.Attempt{}, false
	}
	return results.Attempt, true
}

func (c *PhaseController) MarkContentRead() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.ReadContent(c.phase)
	if outcome != fsm.OutcomeApplied {
		return c.reject("content_read", outcome)
	}
	c.phase = next
	c.setRecord(c.record.WithContentRead())
	c.writer.Submit(models.PendingWrite{
		UserID:   c.userID,
		ModuleID: c.module.ID,
		Kind:     models.WriteContentRead,
		Patch:    &models.ProgressPatch{ContentRead: true},
	})
	return outcome
}

func (c *PhaseController) BeginQuiz() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.Begin(c.phase, c.now())
	if outcome != fsm.OutcomeApplied {
		return c.reject("begin", outcome)
	}
	c.phase = next
	return outcome
}

func (c *PhaseController) AnswerQuestion(questionID string, answer models.Answer) fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.Answer(c.phase, c.module.Questions, questionID, answer)
	if outcome != fsm.OutcomeApplied {
		return c.reject("answer", outcome)
	}
	c.phase = next
	return outcome
}

// SubmitQuiz scores a complete answer set, folds the attempt into the local
// record and queues the attempt for the store.
func (c *PhaseController) SubmitQuiz() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	var attempt models.Attempt
	next, outcome := fsm.Submit(c.phase, c.module.Questions, func(a fsm.QuizAnswering) models.Attempt {
		submittedAt := c.now()
		result := ScoreQuiz(c.module.Questions, a.Answers, a.StartedAt, submittedAt, c.module.PassingScore)
		attempt = models.Attempt{
			ID:               c.newID(),
			ModuleID:         c.module.ID,
			UserID:           c.userID,
			StartedAt:        a.StartedAt,
			SubmittedAt:      submittedAt,
			Answers:          a.Answers,
			ScorePercentage:  result.ScorePercentage,
			CorrectCount:     result.CorrectCount,
			TotalQuestions:   result.TotalQuestions,
			Passed:           result.Passed,
			TimeSpentMinutes: result.TimeSpentMinutes,
		}
		return attempt
	})
	if outcome != fsm.OutcomeApplied {
		return c.reject("submit", outcome)
	}

	c.phase = next
	c.setRecord(c.record.WithAttempt(attempt))
	c.writer.Submit(models.PendingWrite{
		UserID:   c.userID,
		ModuleID: c.module.ID,
		Kind:     models.WriteAttempt,
		Attempt:  &attempt,
	})
	log.Printf("[PHASE] user=%d module=%s attempt=%s score=%d passed=%t",
		c.userID, c.module.ID, attempt.ID, attempt.ScorePercentage, attempt.Passed)
	return outcome
}

func (c *PhaseController) ReviewContent() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.Review(c.phase)
	if outcome != fsm.OutcomeApplied {
		return c.reject("review", outcome)
	}
	c.phase = next
	return outcome
}

func (c *PhaseController) Retry() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.Retry(c.phase)
	if outcome != fsm.OutcomeApplied {
		return c.reject("retry", outcome)
	}
	c.phase = next
	return outcome
}

// Abandon throws away unsubmitted answers. Nothing is written.
func (c *PhaseController) Abandon() fsm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, outcome := fsm.Abandon(c.phase)
	if outcome == fsm.OutcomeApplied {
		log.Printf("[PHASE] user=%d module=%s abandoned quiz", c.userID, c.module.ID)
	}
	c.phase = next
	return outcome
}

func (c *PhaseController) reject(action string, outcome fsm.Outcome) fsm.Outcome {
	if outcome != fsm.OutcomeNoOp {
		log.Printf("[PHASE] user=%d module=%s %s %s in phase %s", c.userID, c.module.ID, action, outcome, c.phase.Kind())
	}
	return outcome
}

func (c *PhaseController) setRecord(record models.ProgressRecord) {
	c.record = record
	if c.onChange != nil {
		c.onChange(record)
	}
}
