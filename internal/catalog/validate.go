package catalog

import (
	"fmt"
	"strings"

	"github.com/ad/go-rescue-academy/internal/models"
)

// MaxIDLength keeps ids short enough for 64 byte Telegram callback data.
const MaxIDLength = 40

func Validate(modules []*models.Module) error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	known := make(map[string]bool, len(modules))
	for _, m := range modules {
		if m.ID == "" {
			addf("module %q has no id", m.Title)
			continue
		}
		if known[m.ID] {
			addf("duplicate module id %s", m.ID)
		}
		if strings.Contains(m.ID, ":") {
			addf("module id %s contains ':'", m.ID)
		}
		if len(m.ID) > MaxIDLength {
			addf("module id %s is longer than %d bytes", m.ID, MaxIDLength)
		}
		known[m.ID] = true
	}

	questionIDs := make(map[string]bool)
	itemIDs := make(map[string]bool)
	for _, m := range modules {
		if m.ID == "" {
			continue
		}
		if !m.Kind.Valid() {
			addf("module %s has unknown kind %q", m.ID, m.Kind)
		}

		switch m.Kind {
		case models.ModuleKindQuiz:
			if m.PassingScore < 0 || m.PassingScore > 100 {
				addf("module %s passing score %d out of range", m.ID, m.PassingScore)
			}
			if len(m.Questions) == 0 {
				addf("quiz module %s has no questions", m.ID)
			}
			for i := range m.Questions {
				q := &m.Questions[i]
				if questionIDs[q.ID] {
					addf("duplicate question id %s", q.ID)
				}
				questionIDs[q.ID] = true
				if q.ID == "" || strings.Contains(q.ID, ":") {
					addf("question id %q in %s is empty or contains ':'", q.ID, m.ID)
				}
				if len(q.ID) > MaxIDLength {
					addf("question id %s is longer than %d bytes", q.ID, MaxIDLength)
				}
				if q.ModuleID != m.ID {
					addf("question %s belongs to %s, not %s", q.ID, q.ModuleID, m.ID)
				}
				if q.Points <= 0 {
					addf("question %s has non-positive points %d", q.ID, q.Points)
				}
				if !q.Kind.Valid() {
					addf("question %s has unknown kind %q", q.ID, q.Kind)
				} else if !q.CorrectAnswer.ValidFor(q) {
					addf("question %s has invalid correct answer %s", q.ID, q.CorrectAnswer)
				}
			}
		case models.ModuleKindChecklist:
			if len(m.ChecklistItems) == 0 {
				addf("checklist module %s has no items", m.ID)
			}
			for _, item := range m.ChecklistItems {
				if itemIDs[item.ID] {
					addf("duplicate checklist item id %s", item.ID)
				}
				itemIDs[item.ID] = true
				if item.ID == "" || strings.Contains(item.ID, ":") {
					addf("checklist item id %q in %s is empty or contains ':'", item.ID, m.ID)
				}
				if len(item.ID) > MaxIDLength {
					addf("checklist item id %s is longer than %d bytes", item.ID, MaxIDLength)
				}
				if item.ModuleID != m.ID {
					addf("checklist item %s belongs to %s, not %s", item.ID, item.ModuleID, m.ID)
				}
			}
		}

		for _, dep := range m.Prerequisites.ModuleIDs() {
			if !known[dep] {
				addf("module %s requires unknown module %s", m.ID, dep)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return detectCycle(modules)
}

// detectCycle walks the prerequisite graph depth first; a back edge is a cycle.
func detectCycle(modules []*models.Module) error {
	const (
		unvisited = iota
		visiting
		visited
	)

	edges := make(map[string][]string, len(modules))
	for _, m := range modules {
		edges[m.ID] = m.Prerequisites.ModuleIDs()
	}

	state := make(map[string]int, len(modules))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range edges[id] {
			switch state[dep] {
			case visiting:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				path := append([]string{}, stack[start:]...)
				return &CycleError{Path: append(path, dep)}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	for _, m := range modules {
		if state[m.ID] == unvisited {
			if err := visit(m.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
