package models

import (
	"errors"
	"time"
)

var ErrProgressNotFound = errors.New("progress not found")

// ProgressRecord is the durable per-user, per-module summary. It is a value:
// every transition returns a new record and leaves the receiver untouched.
type ProgressRecord struct {
	UserID               int64
	ModuleID             string
	Status               ProgressStatus
	CompletionPercentage int
	AttemptsCount        int
	BestScore            int
	LatestScore          int
	TimeSpentMinutes     int
	LastAttemptAt        *time.Time
	UpdatedAt            time.Time
}

func NewProgressRecord(userID int64, moduleID string) ProgressRecord {
	return ProgressRecord{
		UserID:   userID,
		ModuleID: moduleID,
		Status:   StatusNotStarted,
	}
}

func (p ProgressRecord) WithContentRead() ProgressRecord {
	next := p
	next.CompletionPercentage = 100
	if next.Status == StatusNotStarted {
		next.Status = StatusInProgress
	}
	return next
}

// WithAttempt folds a scored attempt into the record. Passing is sticky and
// the best score never decreases.
func (p ProgressRecord) WithAttempt(a Attempt) ProgressRecord {
	next := p
	next.AttemptsCount++
	next.TimeSpentMinutes += a.TimeSpentMinutes
	next.CompletionPercentage = 100

	if next.LastAttemptAt == nil || !a.SubmittedAt.Before(*next.LastAttemptAt) {
		submittedAt := a.SubmittedAt
		next.LatestScore = a.ScorePercentage
		next.LastAttemptAt = &submittedAt
	}
	if a.ScorePercentage > next.BestScore {
		next.BestScore = a.ScorePercentage
	}

	switch {
	case a.Passed:
		next.Status = StatusPassed
	case next.Status != StatusPassed:
		next.Status = StatusCompleted
	}
	return next
}

// WithChecklist recomputes a checklist module. Unlike a passed quiz, a
// completed checklist drops back to in_progress when an item is unchecked.
func (p ProgressRecord) WithChecklist(checked, total int) ProgressRecord {
	next := p
	next.CompletionPercentage = ChecklistPercentage(checked, total)
	if next.Status == StatusPassed {
		return next
	}
	if next.CompletionPercentage == 100 {
		next.Status = StatusCompleted
	} else {
		next.Status = StatusInProgress
	}
	return next
}

func ChecklistPercentage(checked, total int) int {
	if total <= 0 {
		return 0
	}
	if checked < 0 {
		checked = 0
	}
	if checked > total {
		checked = total
	}
	return checked * 100 / total
}

// ProgressPatch carries the partial update intents accepted by a progress
// store; the store recomputes aggregate fields itself.
type ProgressPatch struct {
	ContentRead bool
	Checklist   *ChecklistMark
	Seq         int64
}

type ChecklistMark struct {
	ItemID  string
	Checked bool
	Total   int
}

type WriteKind string

const (
	WriteContentRead   WriteKind = "content_read"
	WriteChecklistMark WriteKind = "checklist_mark"
	WriteAttempt       WriteKind = "attempt"
)

// PendingWrite is a best-effort store write. ID is zero until the write has
// failed once and been parked for reconciliation.
type PendingWrite struct {
	ID        int64
	UserID    int64
	ModuleID  string
	Kind      WriteKind
	Seq       int64
	Patch     *ProgressPatch
	Attempt   *Attempt
	Tries     int
	CreatedAt time.Time
}
