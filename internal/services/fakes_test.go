package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ad/go-rescue-academy/internal/catalog"
	"github.com/ad/go-rescue-academy/internal/models"
)

var errStoreDown = errors.New("store unavailable")

type markState struct {
	checked bool
	seq     int64
}

// memoryStore mirrors the SQLite store semantics in memory.
type memoryStore struct {
	mu       sync.Mutex
	records  map[writeKey]models.ProgressRecord
	attempts map[string]models.Attempt
	marks    map[writeKey]map[string]markState
	failing  bool
	gate     chan struct{}
	applied  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:  make(map[writeKey]models.ProgressRecord),
		attempts: make(map[string]models.Attempt),
		marks:    make(map[writeKey]map[string]markState),
	}
}

func (s *memoryStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func (s *memoryStore) waitGate() {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (s *memoryStore) appliedWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.applied...)
}

func (s *memoryStore) GetProgress(_ context.Context, userID int64, moduleID string) (models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return models.ProgressRecord{}, errStoreDown
	}
	record, ok := s.records[writeKey{userID, moduleID}]
	if !ok {
		return models.ProgressRecord{}, fmt.Errorf("%w: %s", models.ErrProgressNotFound, moduleID)
	}
	return record, nil
}

func (s *memoryStore) ListProgress(_ context.Context, userID int64) ([]models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	var records []models.ProgressRecord
	for key, r := range s.records {
		if key.userID == userID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ModuleID < records[j].ModuleID })
	return records, nil
}

func (s *memoryStore) UpsertProgress(_ context.Context, userID int64, moduleID string, patch models.ProgressPatch) (models.ProgressRecord, error) {
	s.waitGate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return models.ProgressRecord{}, errStoreDown
	}

	key := writeKey{userID, moduleID}
	record, ok := s.records[key]
	if !ok {
		record = models.NewProgressRecord(userID, moduleID)
	}
	if patch.ContentRead {
		record = record.WithContentRead()
		s.applied = append(s.applied, "content_read:"+moduleID)
	}
	if mark := patch.Checklist; mark != nil {
		marks, ok := s.marks[key]
		if !ok {
			marks = make(map[string]markState)
			s.marks[key] = marks
		}
		if prev, ok := marks[mark.ItemID]; !ok || patch.Seq >= prev.seq {
			marks[mark.ItemID] = markState{checked: mark.Checked, seq: patch.Seq}
		}
		checked := 0
		for _, m := range marks {
			if m.checked {
				checked++
			}
		}
		record = record.WithChecklist(checked, mark.Total)
		s.applied = append(s.applied, fmt.Sprintf("mark:%s:%t", mark.ItemID, mark.Checked))
	}
	s.records[key] = record
	return record, nil
}

func (s *memoryStore) AppendAttempt(_ context.Context, userID int64, moduleID string, attempt models.Attempt) (models.ProgressRecord, error) {
	s.waitGate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return models.ProgressRecord{}, errStoreDown
	}

	key := writeKey{userID, moduleID}
	record, ok := s.records[key]
	if !ok {
		record = models.NewProgressRecord(userID, moduleID)
	}
	if _, seen := s.attempts[attempt.ID]; seen {
		return record, nil
	}
	s.attempts[attempt.ID] = attempt
	record = record.WithAttempt(attempt)
	s.records[key] = record
	s.applied = append(s.applied, "attempt:"+attempt.ID)
	return record, nil
}

func (s *memoryStore) ListChecklistMarks(_ context.Context, userID int64, moduleID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	marks := make(map[string]bool)
	for id, m := range s.marks[writeKey{userID, moduleID}] {
		marks[id] = m.checked
	}
	return marks, nil
}

type memoryPending struct {
	mu     sync.Mutex
	nextID int64
	writes map[int64]models.PendingWrite
}

func newMemoryPending() *memoryPending {
	return &memoryPending{writes: make(map[int64]models.PendingWrite)}
}

func (p *memoryPending) Park(_ context.Context, w models.PendingWrite) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	w.ID = p.nextID
	w.CreatedAt = time.Now()
	p.writes[w.ID] = w
	return w.ID, nil
}

func (p *memoryPending) ListPending(_ context.Context, userID int64) ([]models.PendingWrite, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var writes []models.PendingWrite
	for _, w := range p.writes {
		if userID == 0 || w.UserID == userID {
			writes = append(writes, w)
		}
	}
	sort.Slice(writes, func(i, j int) bool {
		if writes[i].Seq != writes[j].Seq {
			return writes[i].Seq < writes[j].Seq
		}
		return writes[i].ID < writes[j].ID
	})
	return writes, nil
}

func (p *memoryPending) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.writes, id)
	return nil
}

func (p *memoryPending) MarkFailed(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writes[id]; ok {
		w.Tries++
		p.writes[id] = w
	}
	return nil
}

func (p *memoryPending) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

// recordingSubmitter captures writes instead of applying them.
type recordingSubmitter struct {
	mu     sync.Mutex
	writes []models.PendingWrite
}

func (r *recordingSubmitter) Submit(w models.PendingWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
}

func (r *recordingSubmitter) submitted() []models.PendingWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PendingWrite(nil), r.writes...)
}

func fundamentalsModule() *models.Module {
	return &models.Module{
		ID:           "fundamentals",
		Title:        "Rescue Fundamentals",
		Category:     "core",
		Kind:         models.ModuleKindQuiz,
		PassingScore: 80,
		Questions: []models.QuizQuestion{
			{ID: "f1", ModuleID: "fundamentals", Kind: models.QuestionMultipleChoice, Options: []string{"a", "b", "c"}, CorrectAnswer: models.ChoiceAnswer(0), Points: 1},
			{ID: "f2", ModuleID: "fundamentals", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(true), Points: 1},
			{ID: "f3", ModuleID: "fundamentals", Kind: models.QuestionMultipleChoice, Options: []string{"a", "b", "c"}, CorrectAnswer: models.ChoiceAnswer(2), Points: 1},
			{ID: "f4", ModuleID: "fundamentals", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(false), Points: 1},
		},
	}
}

func firstAidModule() *models.Module {
	return &models.Module{
		ID:            "first-aid",
		Title:         "Animal First Aid",
		Category:      "medical",
		Kind:          models.ModuleKindQuiz,
		PassingScore:  75,
		Prerequisites: models.Prerequisites{{"fundamentals"}},
		Questions: []models.QuizQuestion{
			{ID: "a1", ModuleID: "first-aid", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(true), Points: 2},
		},
	}
}

func kennelModule() *models.Module {
	m := &models.Module{
		ID:       "kennel-prep",
		Title:    "Kennel Preparation",
		Category: "operations",
		Kind:     models.ModuleKindChecklist,
	}
	for i := 1; i <= 5; i++ {
		m.ChecklistItems = append(m.ChecklistItems, models.ChecklistItem{
			ID:       fmt.Sprintf("k%d", i),
			ModuleID: m.ID,
			Text:     fmt.Sprintf("Step %d", i),
		})
	}
	return m
}

func fieldRescueModule() *models.Module {
	return &models.Module{
		ID:            "field-rescue",
		Title:         "Field Rescue",
		Category:      "operations",
		Kind:          models.ModuleKindQuiz,
		PassingScore:  70,
		Prerequisites: models.Prerequisites{{"first-aid"}, {"kennel-prep", "fundamentals"}},
		Questions: []models.QuizQuestion{
			{ID: "r1", ModuleID: "field-rescue", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(false), Points: 1},
		},
	}
}

func sampleCatalog() *catalog.Catalog {
	c, err := catalog.New([]*models.Module{fundamentalsModule(), kennelModule(), firstAidModule(), fieldRescueModule()})
	if err != nil {
		panic(err)
	}
	return c
}

// clock hands out fixed instants for deterministic timing.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }
