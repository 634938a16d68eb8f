package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names understood by ImportWorkbook. The first row of every sheet is a header.
//
//	modules:   id | title | category | kind | estimated_minutes | passing_score | requires | content
//	questions: module_id | id | kind | text | options | correct | points
//	checklist: module_id | id | text | description
//
// requires separates AND-groups with ";" and alternatives inside a group
// with "|"; options are "|"-separated as well.
const (
	SheetModules   = "modules"
	SheetQuestions = "questions"
	SheetChecklist = "checklist"
)

// ImportWorkbook reads authored modules from an XLSX workbook. The result
// is not validated; pass it to New.
func ImportWorkbook(r io.Reader) ([]*models.Module, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(name)] = true
	}
	if !sheets[SheetModules] {
		return nil, fmt.Errorf("workbook has no %q sheet", SheetModules)
	}

	rows, err := f.GetRows(SheetModules)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SheetModules, err)
	}

	var modules []*models.Module
	byID := make(map[string]*models.Module)
	for i, row := range dataRows(rows) {
		line := i + 2
		id := cell(row, 0)
		if id == "" {
			continue
		}
		minutes, err := optionalInt(cell(row, 4))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: estimated_minutes: %w", SheetModules, line, err)
		}
		passing, err := optionalInt(cell(row, 5))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: passing_score: %w", SheetModules, line, err)
		}

		m := &models.Module{
			ID:                id,
			Title:             cell(row, 1),
			Category:          cell(row, 2),
			Kind:              models.ModuleKind(strings.ToLower(cell(row, 3))),
			EstimatedDuration: time.Duration(minutes) * time.Minute,
			PassingScore:      passing,
			Prerequisites:     ParseRequires(cell(row, 6)),
			Content:           cell(row, 7),
		}
		modules = append(modules, m)
		byID[id] = m
	}

	if sheets[SheetQuestions] {
		rows, err := f.GetRows(SheetQuestions)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", SheetQuestions, err)
		}
		for i, row := range dataRows(rows) {
			line := i + 2
			moduleID := cell(row, 0)
			if moduleID == "" {
				continue
			}
			m, ok := byID[moduleID]
			if !ok {
				return nil, fmt.Errorf("%s row %d: unknown module %s", SheetQuestions, line, moduleID)
			}

			kind := models.QuestionKind(strings.ToLower(cell(row, 2)))
			correct, err := models.ParseAnswer(kind, strings.ToLower(cell(row, 5)))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", SheetQuestions, line, err)
			}
			points, err := optionalInt(cell(row, 6))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: points: %w", SheetQuestions, line, err)
			}
			if cell(row, 6) == "" {
				points = 1
			}

			m.Questions = append(m.Questions, models.QuizQuestion{
				ID:            cell(row, 1),
				ModuleID:      moduleID,
				Kind:          kind,
				Text:          cell(row, 3),
				Options:       splitList(cell(row, 4), "|"),
				CorrectAnswer: correct,
				Points:        points,
			})
		}
	}

	if sheets[SheetChecklist] {
		rows, err := f.GetRows(SheetChecklist)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", SheetChecklist, err)
		}
		for i, row := range dataRows(rows) {
			moduleID := cell(row, 0)
			if moduleID == "" {
				continue
			}
			m, ok := byID[moduleID]
			if !ok {
				return nil, fmt.Errorf("%s row %d: unknown module %s", SheetChecklist, i+2, moduleID)
			}
			m.ChecklistItems = append(m.ChecklistItems, models.ChecklistItem{
				ID:          cell(row, 1),
				ModuleID:    moduleID,
				Text:        cell(row, 2),
				Description: cell(row, 3),
			})
		}
	}

	return modules, nil
}

// ParseRequires turns "a|b; c" into [[a b] [c]].
func ParseRequires(raw string) models.Prerequisites {
	var prereqs models.Prerequisites
	for _, group := range splitList(raw, ";") {
		if ids := splitList(group, "|"); len(ids) > 0 {
			prereqs = append(prereqs, ids)
		}
	}
	return prereqs
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
