package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ad/go-rescue-academy/internal/catalog"
	"github.com/ad/go-rescue-academy/internal/models"
)

var (
	ErrModuleLocked    = errors.New("module is locked")
	ErrNoActiveSession = errors.New("no active session")
)

// Session is the module a learner currently has open. Exactly one of Quiz
// and Checklist is set, depending on the module kind.
type Session struct {
	Module    *models.Module
	Quiz      *PhaseController
	Checklist *ChecklistSession
}

func (s *Session) Record() models.ProgressRecord {
	if s.Quiz != nil {
		return s.Quiz.Record()
	}
	return s.Checklist.Record()
}

type Overview struct {
	Modules    []ModuleOverview
	Completion int
}

type userReconciler interface {
	ReconcileUser(ctx context.Context, userID int64) (int, error)
}

// TrainingService opens modules for learners and keeps the locally advanced
// view of their progress. Local records win over the store while writes for
// the same module are still failing.
type TrainingService struct {
	catalog    *catalog.Catalog
	store      ProgressStore
	writer     *ProgressWriter
	reconciler userReconciler

	mu         sync.Mutex
	local      map[writeKey]models.ProgressRecord
	localMarks map[writeKey]map[string]bool
	sessions   map[int64]*Session
}

func NewTrainingService(c *catalog.Catalog, store ProgressStore, writer *ProgressWriter, reconciler userReconciler) *TrainingService {
	return &TrainingService{
		catalog:    c,
		store:      store,
		writer:     writer,
		reconciler: reconciler,
		local:      make(map[writeKey]models.ProgressRecord),
		localMarks: make(map[writeKey]map[string]bool),
		sessions:   make(map[int64]*Session),
	}
}

func (s *TrainingService) Catalog() *catalog.Catalog {
	return s.catalog
}

// StartModule opens a module for the learner, replacing any session they
// had open. Locked modules are refused with ErrModuleLocked.
func (s *TrainingService) StartModule(ctx context.Context, userID int64, moduleID string) (*Session, error) {
	module, err := s.catalog.GetModule(moduleID)
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, userID)

	statuses := StatusMap(s.records(ctx, userID))
	if missing := MissingPrerequisites(module, statuses); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleLocked, moduleID)
	}

	s.Leave(userID)

	record := s.loadRecord(ctx, userID, moduleID)
	session := &Session{Module: module}
	key := writeKey{userID: userID, moduleID: moduleID}

	if module.IsQuiz() {
		controller := NewPhaseController(module, record, s.writer)
		controller.onChange = func(r models.ProgressRecord) {
			s.remember(key, r, nil)
		}
		session.Quiz = controller
	} else {
		checklist := NewChecklistSession(module, record, s.loadMarks(ctx, key), s.writer)
		checklist.onChange = func(r models.ProgressRecord, marks map[string]bool) {
			s.remember(key, r, marks)
		}
		session.Checklist = checklist
	}

	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()

	log.Printf("[PHASE] user=%d opened module=%s status=%s completion=%d",
		userID, moduleID, record.Status, record.CompletionPercentage)
	return session, nil
}

func (s *TrainingService) ActiveSession(userID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

// Leave closes the learner's session. An unfinished quiz is abandoned and
// leaves no attempt behind.
func (s *TrainingService) Leave(userID int64) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok && session.Quiz != nil {
		session.Quiz.Abandon()
	}
}

// Overview annotates the whole catalog for the learner.
func (s *TrainingService) Overview(ctx context.Context, userID int64) Overview {
	records := s.records(ctx, userID)
	return Overview{
		Modules:    Annotate(s.catalog, userID, records),
		Completion: ProgramCompletion(s.catalog, StatusMap(records)),
	}
}

func (s *TrainingService) reconcile(ctx context.Context, userID int64) {
	if s.reconciler == nil {
		return
	}
	if _, err := s.reconciler.ReconcileUser(ctx, userID); err != nil {
		log.Printf("[RECONCILER] user=%d: %v", userID, err)
	}
}

// records merges stored records with local ones; local records win.
func (s *TrainingService) records(ctx context.Context, userID int64) []models.ProgressRecord {
	stored, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		log.Printf("[PROGRESS_WRITER] Failed to list progress for user=%d, using local view: %v", userID, err)
	}

	byModule := make(map[string]models.ProgressRecord, len(stored))
	for _, r := range stored {
		byModule[r.ModuleID] = r
	}

	s.mu.Lock()
	for key, r := range s.local {
		if key.userID == userID {
			byModule[key.moduleID] = r
		}
	}
	s.mu.Unlock()

	merged := make([]models.ProgressRecord, 0, len(byModule))
	for _, m := range s.catalog.Modules() {
		if r, ok := byModule[m.ID]; ok {
			merged = append(merged, r)
		}
	}
	return merged
}

func (s *TrainingService) loadRecord(ctx context.Context, userID int64, moduleID string) models.ProgressRecord {
	key := writeKey{userID: userID, moduleID: moduleID}
	if err := s.writer.Wait(ctx, userID, moduleID); err != nil {
		log.Printf("[PROGRESS_WRITER] Gave up waiting for user=%d module=%s: %v", userID, moduleID, err)
	}

	s.mu.Lock()
	local, hasLocal := s.local[key]
	s.mu.Unlock()

	if hasLocal && s.writer.HasFailures(userID, moduleID) {
		return local
	}

	record, err := s.store.GetProgress(ctx, userID, moduleID)
	switch {
	case err == nil:
		s.remember(key, record, nil)
		return record
	case hasLocal:
		return local
	case !isNotFound(err):
		log.Printf("[PROGRESS_WRITER] Failed to load progress user=%d module=%s: %v", userID, moduleID, err)
	}
	return models.NewProgressRecord(userID, moduleID)
}

func (s *TrainingService) loadMarks(ctx context.Context, key writeKey) map[string]bool {
	s.mu.Lock()
	local, hasLocal := s.localMarks[key]
	s.mu.Unlock()

	if hasLocal && s.writer.HasFailures(key.userID, key.moduleID) {
		return local
	}

	marks, err := s.store.ListChecklistMarks(ctx, key.userID, key.moduleID)
	if err != nil {
		log.Printf("[PROGRESS_WRITER] Failed to load checklist marks user=%d module=%s: %v", key.userID, key.moduleID, err)
		return local
	}
	return marks
}

func (s *TrainingService) remember(key writeKey, record models.ProgressRecord, marks map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = record
	if marks != nil {
		s.localMarks[key] = marks
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrProgressNotFound)
}
