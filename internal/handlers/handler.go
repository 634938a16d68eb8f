package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/ad/go-rescue-academy/internal/catalog"
	"github.com/ad/go-rescue-academy/internal/db"
	"github.com/ad/go-rescue-academy/internal/fsm"
	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/ad/go-rescue-academy/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

type BotHandler struct {
	bot          *bot.Bot
	training     *services.TrainingService
	msgManager   *services.MessageManager
	errorManager *services.ErrorManager
	userRepo     *db.UserRepository

	locksMu   sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewBotHandler(
	b *bot.Bot,
	training *services.TrainingService,
	msgManager *services.MessageManager,
	errorManager *services.ErrorManager,
	userRepo *db.UserRepository,
) *BotHandler {
	return &BotHandler{
		bot:          b,
		training:     training,
		msgManager:   msgManager,
		errorManager: errorManager,
		userRepo:     userRepo,
		userLocks:    make(map[int64]*sync.Mutex),
	}
}

// HandleUpdate runs concurrently for different updates; updates of one
// learner are handled one at a time.
func (h *BotHandler) HandleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	if userID := updateUserID(update); userID != 0 {
		unlock := h.lockUser(userID)
		defer unlock()
	}

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func updateUserID(update *tgmodels.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

func (h *BotHandler) lockUser(userID int64) func() {
	h.locksMu.Lock()
	mu, ok := h.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		h.userLocks[userID] = mu
	}
	h.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		h.errorManager.NotifyAdmin(ctx, r, update)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	command, arg, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	switch command {
	case "/start":
		h.handleStart(ctx, msg)
	case "/modules":
		h.showModules(ctx, msg.Chat.ID, 0, msg.From.ID, strings.TrimSpace(arg))
	case "/progress":
		h.showProgress(ctx, msg.Chat.ID, msg.From.ID)
	default:
		h.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   "Use /modules to pick a training module or /progress to see how you are doing.",
		})
	}
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message) {
	user := &models.User{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.Username,
	}
	if err := h.userRepo.CreateOrUpdate(ctx, user); err != nil {
		log.Printf("[HANDLER] Failed to register user %d: %v", user.ID, err)
	}

	h.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
		ChatID:    msg.Chat.ID,
		Text:      "👋 Welcome to the rescue academy, " + services.FormatBold(user.DisplayName()) + "!\nWork through the modules below to get certified.",
		ParseMode: tgmodels.ParseModeHTML,
	})
	h.showModules(ctx, msg.Chat.ID, 0, user.ID, "")
}

func (h *BotHandler) showModules(ctx context.Context, chatID int64, messageID int, userID int64, category string) {
	overview := h.training.Overview(ctx, userID)
	if category != "" {
		visible := make(map[string]bool)
		for _, m := range h.training.Catalog().ListModules(category) {
			visible[m.ID] = true
		}
		filtered := overview.Modules[:0:0]
		for _, m := range overview.Modules {
			if visible[m.Module.ID] {
				filtered = append(filtered, m)
			}
		}
		overview.Modules = filtered
	}
	h.show(ctx, chatID, messageID, renderModuleList(overview, category))
}

func (h *BotHandler) showProgress(ctx context.Context, chatID int64, userID int64) {
	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[HANDLER] No profile for user %d: %v", userID, err)
	}
	h.show(ctx, chatID, 0, renderProgress(h.training.Overview(ctx, userID), user))
}

func (h *BotHandler) show(ctx context.Context, chatID int64, messageID int, s screen) {
	if err := h.msgManager.ShowScreen(ctx, chatID, messageID, s.Text, s.Keyboard); err != nil {
		log.Printf("[HANDLER] Failed to show screen in chat %d: %v", chatID, err)
	}
}

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	msg := callback.Message.Message
	if msg == nil {
		h.answerCallback(ctx, callback, "")
		return
	}
	userID := callback.From.ID
	chatID := msg.Chat.ID

	action, ok := parseCallback(callback.Data)
	if !ok {
		h.answerCallback(ctx, callback, "")
		return
	}

	switch action.Name {
	case actionOpen:
		h.answerCallback(ctx, callback, "")
		h.openModule(ctx, chatID, msg.ID, userID, action.Args[0])
		return
	case actionBack:
		h.training.Leave(userID)
		h.answerCallback(ctx, callback, "")
		h.showModules(ctx, chatID, msg.ID, userID, "")
		return
	case actionRefresh:
		h.answerCallback(ctx, callback, "")
		h.showModules(ctx, chatID, msg.ID, userID, "")
		return
	}

	session, err := h.training.ActiveSession(userID)
	if err != nil {
		h.answerCallback(ctx, callback, "This session has expired, pick a module again.")
		h.showModules(ctx, chatID, msg.ID, userID, "")
		return
	}

	outcome := applyAction(session, action)
	h.answerCallback(ctx, callback, outcomeNotice(action.Name, outcome))
	if outcome == fsm.OutcomeApplied {
		h.show(ctx, chatID, msg.ID, renderSession(session))
	}
}

// applyAction runs a callback against the open session. Question and item
// ids are unique across the catalog, so only the phase actions carry the
// module id explicitly.
func applyAction(session *services.Session, action callbackAction) fsm.Outcome {
	switch action.Name {
	case actionRead, actionBegin, actionSubmit, actionReview, actionRetry:
		if action.Args[0] != session.Module.ID {
			return fsm.OutcomeBlocked
		}
	}

	if action.Name == actionToggle {
		if session.Checklist == nil {
			return fsm.OutcomeBlocked
		}
		return session.Checklist.Toggle(action.Args[0], action.Args[1] == "1")
	}

	quiz := session.Quiz
	if quiz == nil {
		return fsm.OutcomeBlocked
	}

	switch action.Name {
	case actionRead:
		return quiz.MarkContentRead()
	case actionBegin:
		return quiz.BeginQuiz()
	case actionAnswer:
		q, ok := quiz.Module().Question(action.Args[0])
		if !ok {
			return fsm.OutcomeBlocked
		}
		answer, err := models.ParseAnswer(q.Kind, action.Args[1])
		if err != nil {
			return fsm.OutcomeBlocked
		}
		return quiz.AnswerQuestion(q.ID, answer)
	case actionSubmit:
		return quiz.SubmitQuiz()
	case actionReview:
		return quiz.ReviewContent()
	case actionRetry:
		return quiz.Retry()
	default:
		return fsm.OutcomeBlocked
	}
}

func (h *BotHandler) openModule(ctx context.Context, chatID int64, messageID int, userID int64, moduleID string) {
	session, err := h.training.StartModule(ctx, userID, moduleID)
	switch {
	case err == nil:
		h.show(ctx, chatID, messageID, renderSession(session))
	case errors.Is(err, catalog.ErrModuleNotFound):
		h.show(ctx, chatID, messageID, renderNotFound(moduleID))
	case errors.Is(err, services.ErrModuleLocked):
		h.showLocked(ctx, chatID, messageID, userID, moduleID)
	default:
		log.Printf("[HANDLER] Failed to open module %s for user %d: %v", moduleID, userID, err)
	}
}

func (h *BotHandler) showLocked(ctx context.Context, chatID int64, messageID int, userID int64, moduleID string) {
	c := h.training.Catalog()
	module, err := c.GetModule(moduleID)
	if err != nil {
		h.show(ctx, chatID, messageID, renderNotFound(moduleID))
		return
	}

	var missing [][]string
	for _, m := range h.training.Overview(ctx, userID).Modules {
		if m.Module.ID == moduleID {
			missing = m.Missing
		}
	}
	title := func(id string) string {
		if dep, err := c.GetModule(id); err == nil {
			return dep.Title
		}
		return id
	}
	h.show(ctx, chatID, messageID, renderLocked(module, missing, title))
}

func (h *BotHandler) answerCallback(ctx context.Context, callback *tgmodels.CallbackQuery, text string) {
	_, err := h.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	})
	if err != nil {
		log.Printf("[CALLBACK] Failed to answer callback %s: %v", callback.ID, err)
	}
}
