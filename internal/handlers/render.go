package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/ad/go-rescue-academy/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
)

type screen struct {
	Text     string
	Keyboard *tgmodels.InlineKeyboardMarkup
}

func keyboard(rows ...[]tgmodels.InlineKeyboardButton) *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func button(text, data string) tgmodels.InlineKeyboardButton {
	return tgmodels.InlineKeyboardButton{Text: text, CallbackData: data}
}

func statusIcon(status models.ProgressStatus) string {
	switch status {
	case models.StatusPassed:
		return "🏅"
	case models.StatusCompleted:
		return "✅"
	case models.StatusInProgress:
		return "📘"
	default:
		return "▫️"
	}
}

func statusLabel(status models.ProgressStatus) string {
	switch status {
	case models.StatusPassed:
		return "passed"
	case models.StatusCompleted:
		return "completed"
	case models.StatusInProgress:
		return "in progress"
	default:
		return "not started"
	}
}

// renderModuleList shows modules with lock and status markers. The overview
// is expected to be filtered to the category already.
func renderModuleList(overview services.Overview, category string) screen {
	var sb strings.Builder
	sb.WriteString(services.FormatBold("🐾 Training modules"))
	if category != "" {
		sb.WriteString(" " + services.FormatItalic(category))
	}
	sb.WriteString("\n\n")

	var rows [][]tgmodels.InlineKeyboardButton
	for _, m := range overview.Modules {
		icon := statusIcon(m.Record.Status)
		if m.Locked {
			icon = "🔒"
		}
		sb.WriteString(fmt.Sprintf("%s %s", icon, services.Escape(m.Module.Title)))
		if m.Module.EstimatedDuration > 0 {
			sb.WriteString(fmt.Sprintf(" · %s", services.FormatDuration(m.Module.EstimatedDuration)))
		}
		sb.WriteString("\n")
		rows = append(rows, []tgmodels.InlineKeyboardButton{button(icon+" "+m.Module.Title, openData(m.Module.ID))})
	}
	if len(rows) == 0 {
		sb.WriteString("No modules in this category.\n")
	}

	sb.WriteString("\nProgram: " + services.ProgressBar(overview.Completion, 10))
	return screen{Text: sb.String(), Keyboard: keyboard(rows...)}
}

// renderProgress shows per-module progress; user may be nil when the learner
// has no stored profile yet.
func renderProgress(overview services.Overview, user *models.User) screen {
	var sb strings.Builder
	if user != nil {
		sb.WriteString(services.FormatBold("📊 Progress of "+user.DisplayName()) + "\n")
		sb.WriteString(services.FormatItalic("Learning since "+services.FormatDateTime(user.CreatedAt)) + "\n\n")
	} else {
		sb.WriteString(services.FormatBold("📊 Your progress") + "\n\n")
	}
	sb.WriteString("Program: " + services.ProgressBar(overview.Completion, 10) + "\n\n")

	for _, m := range overview.Modules {
		r := m.Record
		sb.WriteString(fmt.Sprintf("%s %s: %s", statusIcon(r.Status), services.Escape(m.Module.Title), statusLabel(r.Status)))
		if m.Module.Kind == models.ModuleKindQuiz && r.AttemptsCount > 0 {
			sb.WriteString(fmt.Sprintf(", best %d%%, last %d%%, %d attempts", r.BestScore, r.LatestScore, r.AttemptsCount))
		}
		if m.Module.Kind == models.ModuleKindChecklist && r.Status != models.StatusNotStarted {
			sb.WriteString(fmt.Sprintf(", %d%%", r.CompletionPercentage))
		}
		if r.TimeSpentMinutes > 0 {
			sb.WriteString(fmt.Sprintf(", %d min", r.TimeSpentMinutes))
		}
		sb.WriteString("\n")
	}
	return screen{Text: sb.String(), Keyboard: keyboard([]tgmodels.InlineKeyboardButton{button("📚 Modules", actionRefresh)})}
}

func renderLocked(module *models.Module, missing [][]string, title func(id string) string) screen {
	var sb strings.Builder
	sb.WriteString("🔒 " + services.FormatBold(module.Title) + " is locked.\n\nFinish first:\n")
	for _, group := range missing {
		names := make([]string, len(group))
		for i, id := range group {
			names[i] = services.Escape(title(id))
		}
		sb.WriteString("• " + strings.Join(names, " or ") + "\n")
	}
	return screen{Text: sb.String(), Keyboard: keyboard([]tgmodels.InlineKeyboardButton{button("⬅️ Back", actionBack)})}
}

func renderNotFound(moduleID string) screen {
	return screen{
		Text:     fmt.Sprintf("⚠️ Module %s was not found.", services.FormatItalic(moduleID)),
		Keyboard: keyboard([]tgmodels.InlineKeyboardButton{button("⬅️ Back", actionBack)}),
	}
}

func renderSession(session *services.Session) screen {
	if session.Checklist != nil {
		return renderChecklist(session.Checklist)
	}
	return renderQuiz(session.Quiz)
}

func renderQuiz(c *services.PhaseController) screen {
	module := c.Module()
	back := button("⬅️ Back", actionBack)

	switch phase := c.Phase().(type) {
	case fsm.Content:
		text := services.FormatBold(module.Title) + "\n\n" + services.Escape(module.Content)
		return screen{
			Text:     text,
			Keyboard: keyboard([]tgmodels.InlineKeyboardButton{button("✅ I've read it", moduleData(actionRead, module.ID))}, []tgmodels.InlineKeyboardButton{back}),
		}

	case fsm.QuizIntro:
		record := c.Record()
		text := fmt.Sprintf("%s\n\n📝 Quiz: %d questions, pass mark %d%%.",
			services.FormatBold(module.Title), len(module.Questions), module.PassingScore)
		if record.AttemptsCount > 0 {
			text += fmt.Sprintf("\nBest score so far: %d%% after %d attempts.", record.BestScore, record.AttemptsCount)
		}
		if record.Status == models.StatusPassed {
			text += "\n🏅 Already passed."
		}
		return screen{
			Text:     text,
			Keyboard: keyboard([]tgmodels.InlineKeyboardButton{button("▶️ Start quiz", moduleData(actionBegin, module.ID))}, []tgmodels.InlineKeyboardButton{back}),
		}

	case fsm.QuizAnswering:
		return renderQuestion(module, phase)

	case fsm.Results:
		return renderResults(module, phase.Attempt, c.Record())
	}

	return screen{Text: "⚠️ Unknown state", Keyboard: keyboard([]tgmodels.InlineKeyboardButton{back})}
}

func renderQuestion(module *models.Module, phase fsm.QuizAnswering) screen {
	total := len(module.Questions)
	submit := []tgmodels.InlineKeyboardButton{button("📨 Submit", moduleData(actionSubmit, module.ID))}

	if phase.Index >= total {
		text := fmt.Sprintf("%s\n\nAll %d questions answered.", services.FormatBold(module.Title), total)
		return screen{Text: text, Keyboard: keyboard(submit)}
	}

	q := module.Questions[phase.Index]
	text := fmt.Sprintf("%s\n\nQuestion %d/%d (answered %d)\n\n%s",
		services.FormatBold(module.Title), phase.Index+1, total, len(phase.Answers), services.Escape(q.Text))

	var rows [][]tgmodels.InlineKeyboardButton
	switch q.Kind {
	case models.QuestionMultipleChoice:
		for i, option := range q.Options {
			rows = append(rows, []tgmodels.InlineKeyboardButton{button(option, answerData(q.ID, strconv.Itoa(i)))})
		}
	case models.QuestionTrueFalse:
		rows = append(rows, []tgmodels.InlineKeyboardButton{
			button("True", answerData(q.ID, "true")),
			button("False", answerData(q.ID, "false")),
		})
	}
	rows = append(rows, submit)
	return screen{Text: text, Keyboard: keyboard(rows...)}
}

func renderResults(module *models.Module, attempt models.Attempt, record models.ProgressRecord) screen {
	verdict := "❌ Not passed yet"
	if attempt.Passed {
		verdict = "🎉 Passed!"
	}
	text := fmt.Sprintf("%s\n\n%s\nScore: %d%% (pass mark %d%%)\nCorrect: %d/%d\nTime: %d min\nBest score: %d%%",
		services.FormatBold(module.Title), verdict, attempt.ScorePercentage, module.PassingScore,
		attempt.CorrectCount, attempt.TotalQuestions, attempt.TimeSpentMinutes, record.BestScore)

	var rows [][]tgmodels.InlineKeyboardButton
	if !attempt.Passed {
		rows = append(rows, []tgmodels.InlineKeyboardButton{button("🔁 Retry", moduleData(actionRetry, module.ID))})
	}
	rows = append(rows,
		[]tgmodels.InlineKeyboardButton{button("📖 Review content", moduleData(actionReview, module.ID))},
		[]tgmodels.InlineKeyboardButton{button("⬅️ Back", actionBack)},
	)
	return screen{Text: text, Keyboard: keyboard(rows...)}
}

func renderChecklist(s *services.ChecklistSession) screen {
	module := s.Module()
	record := s.Record()

	var sb strings.Builder
	sb.WriteString(services.FormatBold(module.Title) + "\n\n")
	if module.Content != "" {
		sb.WriteString(services.Escape(module.Content) + "\n\n")
	}

	var rows [][]tgmodels.InlineKeyboardButton
	for _, item := range module.ChecklistItems {
		checked := s.Checked(item.ID)
		mark := "⬜"
		if checked {
			mark = "☑️"
		}
		sb.WriteString(fmt.Sprintf("%s %s", mark, services.Escape(item.Text)))
		if item.Description != "" {
			sb.WriteString(" " + services.FormatItalic(item.Description))
		}
		sb.WriteString("\n")
		rows = append(rows, []tgmodels.InlineKeyboardButton{button(mark+" "+item.Text, toggleData(item.ID, !checked))})
	}

	sb.WriteString(fmt.Sprintf("\n%s (%s)", services.ProgressBar(record.CompletionPercentage, 10), statusLabel(record.Status)))
	rows = append(rows, []tgmodels.InlineKeyboardButton{button("⬅️ Back", actionBack)})
	return screen{Text: sb.String(), Keyboard: keyboard(rows...)}
}

// outcomeNotice is the short toast shown for actions that did not apply.
func outcomeNotice(action string, outcome fsm.Outcome) string {
	switch outcome {
	case fsm.OutcomeIncomplete:
		return "Answer every question before submitting."
	case fsm.OutcomeNoOp:
		if action == actionRetry {
			return "You already passed this module."
		}
		if action == actionSubmit {
			return "This attempt was already submitted."
		}
		return ""
	case fsm.OutcomeBlocked:
		return "That is not available right now."
	default:
		return ""
	}
}
