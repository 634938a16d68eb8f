package services

import (
	"github.com/ad/go-rescue-academy/internal/catalog"
	"github.com/ad/go-rescue-academy/internal/models"
)

// ModuleOverview is a catalog entry annotated for one learner.
type ModuleOverview struct {
	Module  models.ModuleSummary
	Locked  bool
	Record  models.ProgressRecord
	Missing [][]string
}

// StatusMap indexes progress records by module id. Modules without a record
// are absent and count as not started.
func StatusMap(records []models.ProgressRecord) map[string]models.ProgressStatus {
	statuses := make(map[string]models.ProgressStatus, len(records))
	for _, r := range records {
		statuses[r.ModuleID] = r.Status
	}
	return statuses
}

// ResolveLocks reports, per module id, whether the module is locked.
func ResolveLocks(c *catalog.Catalog, statuses map[string]models.ProgressStatus) map[string]bool {
	locks := make(map[string]bool, c.Len())
	for _, m := range c.Modules() {
		locks[m.ID] = len(MissingPrerequisites(m, statuses)) > 0
	}
	return locks
}

// MissingPrerequisites returns the AND-groups that no finished module
// satisfies yet. An empty result means the module is unlocked.
func MissingPrerequisites(m *models.Module, statuses map[string]models.ProgressStatus) [][]string {
	var missing [][]string
	for _, group := range m.Prerequisites {
		if len(group) == 0 {
			continue
		}
		satisfied := false
		for _, id := range group {
			if statuses[id].Done() {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, group)
		}
	}
	return missing
}

// ProgramCompletion is the floored share of finished modules.
func ProgramCompletion(c *catalog.Catalog, statuses map[string]models.ProgressStatus) int {
	total := c.Len()
	if total == 0 {
		return 0
	}
	done := 0
	for _, m := range c.Modules() {
		if statuses[m.ID].Done() {
			done++
		}
	}
	return done * 100 / total
}

// Annotate lists every module in catalog order with its lock state and the
// learner's record, creating empty records for untouched modules.
func Annotate(c *catalog.Catalog, userID int64, records []models.ProgressRecord) []ModuleOverview {
	byModule := make(map[string]models.ProgressRecord, len(records))
	for _, r := range records {
		byModule[r.ModuleID] = r
	}
	statuses := StatusMap(records)

	overview := make([]ModuleOverview, 0, c.Len())
	for _, m := range c.Modules() {
		record, ok := byModule[m.ID]
		if !ok {
			record = models.NewProgressRecord(userID, m.ID)
		}
		missing := MissingPrerequisites(m, statuses)
		overview = append(overview, ModuleOverview{
			Module:  m.Summary(),
			Locked:  len(missing) > 0,
			Record:  record,
			Missing: missing,
		})
	}
	return overview
}
