package models

import (
	"fmt"
	"strconv"
	"time"
)

type Module struct {
	ID                string
	Title             string
	Category          string
	Content           string
	Kind              ModuleKind
	EstimatedDuration time.Duration
	PassingScore      int
	Prerequisites     Prerequisites
	Questions         []QuizQuestion
	ChecklistItems    []ChecklistItem
}

func (m *Module) IsQuiz() bool {
	return m.Kind == ModuleKindQuiz
}

func (m *Module) Question(id string) (*QuizQuestion, bool) {
	for i := range m.Questions {
		if m.Questions[i].ID == id {
			return &m.Questions[i], true
		}
	}
	return nil, false
}

func (m *Module) HasChecklistItem(id string) bool {
	for _, item := range m.ChecklistItems {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (m *Module) Summary() ModuleSummary {
	return ModuleSummary{
		ID:                m.ID,
		Title:             m.Title,
		Category:          m.Category,
		Kind:              m.Kind,
		EstimatedDuration: m.EstimatedDuration,
		PassingScore:      m.PassingScore,
		QuestionCount:     len(m.Questions),
		ChecklistCount:    len(m.ChecklistItems),
		Prerequisites:     m.Prerequisites,
	}
}

type ModuleSummary struct {
	ID                string
	Title             string
	Category          string
	Kind              ModuleKind
	EstimatedDuration time.Duration
	PassingScore      int
	QuestionCount     int
	ChecklistCount    int
	Prerequisites     Prerequisites
}

// Prerequisites is a conjunction of groups; a group is satisfied when any
// one of its module ids is done.
type Prerequisites [][]string

func (p Prerequisites) IsEmpty() bool {
	for _, group := range p {
		if len(group) > 0 {
			return false
		}
	}
	return true
}

func (p Prerequisites) ModuleIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, group := range p {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

type QuizQuestion struct {
	ID            string
	ModuleID      string
	Text          string
	Kind          QuestionKind
	Options       []string
	CorrectAnswer Answer
	Points        int
}

type ChecklistItem struct {
	ID          string
	ModuleID    string
	Text        string
	Description string
}

// Answer holds an option index for multiple choice questions or a boolean
// for true/false questions. Exactly one of the fields is set.
type Answer struct {
	Choice *int  `json:"choice,omitempty"`
	Truth  *bool `json:"truth,omitempty"`
}

func ChoiceAnswer(index int) Answer {
	return Answer{Choice: &index}
}

func TruthAnswer(value bool) Answer {
	return Answer{Truth: &value}
}

func (a Answer) IsZero() bool {
	return a.Choice == nil && a.Truth == nil
}

// ValidFor reports whether the answer has the shape the question expects.
func (a Answer) ValidFor(q *QuizQuestion) bool {
	switch q.Kind {
	case QuestionMultipleChoice:
		return a.Choice != nil && a.Truth == nil && *a.Choice >= 0 && *a.Choice < len(q.Options)
	case QuestionTrueFalse:
		return a.Truth != nil && a.Choice == nil
	default:
		return false
	}
}

// Matches compares by exact equality for the given question kind.
func (a Answer) Matches(kind QuestionKind, expected Answer) bool {
	switch kind {
	case QuestionMultipleChoice:
		return a.Choice != nil && expected.Choice != nil && *a.Choice == *expected.Choice
	case QuestionTrueFalse:
		return a.Truth != nil && expected.Truth != nil && *a.Truth == *expected.Truth
	default:
		return false
	}
}

func (a Answer) String() string {
	switch {
	case a.Choice != nil:
		return strconv.Itoa(*a.Choice)
	case a.Truth != nil:
		return strconv.FormatBool(*a.Truth)
	default:
		return "<none>"
	}
}

// ParseAnswer reads the compact form produced by String.
func ParseAnswer(kind QuestionKind, raw string) (Answer, error) {
	switch kind {
	case QuestionMultipleChoice:
		index, err := strconv.Atoi(raw)
		if err != nil {
			return Answer{}, fmt.Errorf("invalid choice %q: %w", raw, err)
		}
		return ChoiceAnswer(index), nil
	case QuestionTrueFalse:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return Answer{}, fmt.Errorf("invalid truth value %q: %w", raw, err)
		}
		return TruthAnswer(value), nil
	default:
		return Answer{}, fmt.Errorf("unknown question kind: %s", kind)
	}
}
