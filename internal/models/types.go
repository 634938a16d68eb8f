package models

type ModuleKind string

const (
	ModuleKindQuiz      ModuleKind = "quiz"
	ModuleKindChecklist ModuleKind = "checklist"
)

func (k ModuleKind) Valid() bool {
	return k == ModuleKindQuiz || k == ModuleKindChecklist
}

type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionTrueFalse      QuestionKind = "true_false"
)

func (k QuestionKind) Valid() bool {
	return k == QuestionMultipleChoice || k == QuestionTrueFalse
}

// ProgressStatus is ordered: not_started < in_progress < completed < passed.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusPassed     ProgressStatus = "passed"
)

func (s ProgressStatus) Rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	case StatusPassed:
		return 3
	default:
		return 0
	}
}

// Done reports whether the status satisfies a prerequisite.
func (s ProgressStatus) Done() bool {
	return s == StatusCompleted || s == StatusPassed
}

func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusPassed:
		return true
	default:
		return false
	}
}
