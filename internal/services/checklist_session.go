package services

import (
	"sync"

	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
)

// ChecklistSession toggles items of a checklist module. Every toggle updates
// the local record at once and queues the mark for the store.
type ChecklistSession struct {
	mu      sync.Mutex
	module  *models.Module
	userID  int64
	record  models.ProgressRecord
	checked map[string]bool

	writer   writeSubmitter
	onChange func(models.ProgressRecord, map[string]bool)
}

func NewChecklistSession(module *models.Module, record models.ProgressRecord, checked map[string]bool, writer writeSubmitter) *ChecklistSession {
	marks := make(map[string]bool, len(checked))
	for id, v := range checked {
		if v && module.HasChecklistItem(id) {
			marks[id] = true
		}
	}
	return &ChecklistSession{
		module:  module,
		userID:  record.UserID,
		record:  record,
		checked: marks,
		writer:  writer,
	}
}

func (s *ChecklistSession) Module() *models.Module { return s.module }

func (s *ChecklistSession) Record() models.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

func (s *ChecklistSession) Checked(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[itemID]
}

func (s *ChecklistSession) CheckedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checked)
}

func (s *ChecklistSession) Toggle(itemID string, checked bool) fsm.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.module.HasChecklistItem(itemID) {
		return fsm.OutcomeBlocked
	}
	if s.checked[itemID] == checked {
		return fsm.OutcomeNoOp
	}

	marks := make(map[string]bool, len(s.checked)+1)
	for id := range s.checked {
		marks[id] = true
	}
	if checked {
		marks[itemID] = true
	} else {
		delete(marks, itemID)
	}
	s.checked = marks

	total := len(s.module.ChecklistItems)
	s.record = s.record.WithChecklist(len(marks), total)
	if s.onChange != nil {
		s.onChange(s.record, marks)
	}

	s.writer.Submit(models.PendingWrite{
		UserID:   s.userID,
		ModuleID: s.module.ID,
		Kind:     models.WriteChecklistMark,
		Patch: &models.ProgressPatch{
			Checklist: &models.ChecklistMark{ItemID: itemID, Checked: checked, Total: total},
		},
	})
	return fsm.OutcomeApplied
}
