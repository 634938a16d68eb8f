package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ad/go-rescue-academy/internal/catalog"
	"github.com/ad/go-rescue-academy/internal/db"
	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/ad/go-rescue-academy/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
)

func TestFormatUser(t *testing.T) {
	cases := []struct {
		user tgmodels.User
		want string
	}{
		{tgmodels.User{ID: 1, FirstName: "Ann"}, "Ann [1]"},
		{tgmodels.User{ID: 2, FirstName: "Ann", LastName: "Lee"}, "Ann Lee [2]"},
		{tgmodels.User{ID: 3, FirstName: "Ann", Username: "annlee"}, "Ann @annlee [3]"},
	}
	for _, tc := range cases {
		if got := formatUser(tc.user); got != tc.want {
			t.Errorf("formatUser(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

func TestTrainingFlowPersistsAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "academy.db")
	modules, err := catalog.Load("../../internal/catalog/testdata/catalog.yaml")
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}

	ctx := context.Background()
	const userID = int64(501)

	sqlDB, err := openDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	queue := db.NewDBQueueForTest(sqlDB)
	progressRepo := db.NewProgressRepository(queue)
	pendingRepo := db.NewPendingWriteRepository(queue)
	writer := services.NewProgressWriter(progressRepo, pendingRepo, time.Second)
	reconciler := services.NewReconciler(pendingRepo, writer, time.Minute)
	training := services.NewTrainingService(modules, progressRepo, writer, reconciler)

	session, err := training.StartModule(ctx, userID, "fundamentals")
	if err != nil {
		t.Fatalf("StartModule: %v", err)
	}
	quiz := session.Quiz
	if quiz == nil {
		t.Fatal("fundamentals should open a quiz session")
	}

	steps := []fsm.Outcome{
		quiz.MarkContentRead(),
		quiz.BeginQuiz(),
		quiz.AnswerQuestion("fund-intake", models.ChoiceAnswer(1)),
		quiz.AnswerQuestion("fund-solo", models.TruthAnswer(false)),
		quiz.AnswerQuestion("fund-quarantine", models.ChoiceAnswer(2)),
		quiz.AnswerQuestion("fund-chip", models.TruthAnswer(false)),
		quiz.SubmitQuiz(),
	}
	for i, outcome := range steps {
		if outcome != fsm.OutcomeApplied {
			t.Fatalf("step %d: expected applied, got %s", i, outcome)
		}
	}
	if got := quiz.SubmitQuiz(); got != fsm.OutcomeNoOp {
		t.Fatalf("second submit should be a no-op, got %s", got)
	}

	writer.Close()
	queue.Close()
	sqlDB.Close()

	sqlDB, err = openDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer sqlDB.Close()
	queue = db.NewDBQueueForTest(sqlDB)
	defer queue.Close()
	progressRepo = db.NewProgressRepository(queue)

	record, err := progressRepo.GetProgress(ctx, userID, "fundamentals")
	if err != nil {
		t.Fatalf("GetProgress after restart: %v", err)
	}
	if record.Status != models.StatusPassed || record.BestScore != 100 || record.AttemptsCount != 1 {
		t.Fatalf("unexpected persisted record: %+v", record)
	}

	writer = services.NewProgressWriter(progressRepo, db.NewPendingWriteRepository(queue), time.Second)
	defer writer.Close()
	training = services.NewTrainingService(modules, progressRepo, writer, nil)

	overview := training.Overview(ctx, userID)
	if overview.Completion != 25 {
		t.Errorf("expected 25%% program completion, got %d", overview.Completion)
	}
	for _, m := range overview.Modules {
		switch m.Module.ID {
		case "fundamentals":
			if m.Record.Status != models.StatusPassed {
				t.Errorf("fundamentals should be passed, got %s", m.Record.Status)
			}
		case "field-rescue":
			if !m.Locked {
				t.Error("field-rescue still needs first-aid and should stay locked")
			}
		}
	}
}
