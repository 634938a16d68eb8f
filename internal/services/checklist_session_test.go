package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestChecklistSession_IgnoresUnknownAndUnchangedItems(t *testing.T) {
	submitter := &recordingSubmitter{}
	s := NewChecklistSession(kennelModule(), models.NewProgressRecord(3, "kennel-prep"), map[string]bool{"k1": true, "ghost": true}, submitter)

	assert.Equal(t, 1, s.CheckedCount())
	assert.Equal(t, fsm.OutcomeNoOp, s.Toggle("k1", true))
	assert.Equal(t, fsm.OutcomeBlocked, s.Toggle("ghost", false))
	assert.Empty(t, submitter.submitted())
}

func TestChecklistSession_ConcurrentTogglesKeepEveryMark(t *testing.T) {
	submitter := &recordingSubmitter{}
	s := NewChecklistSession(kennelModule(), models.NewProgressRecord(3, "kennel-prep"), nil, submitter)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.Toggle(id, true)
		}(fmt.Sprintf("k%d", i))
	}
	wg.Wait()

	assert.Equal(t, 5, s.CheckedCount())
	assert.Equal(t, 100, s.Record().CompletionPercentage)
	assert.Equal(t, models.StatusCompleted, s.Record().Status)
	assert.Len(t, submitter.submitted(), 5)
}
