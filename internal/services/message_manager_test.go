package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"pgregory.net/rapid"
)

type fakeSender struct {
	sendAttempts int32
	failUntil    int32
	sendErr      error
	editErr      error
	successMsgID int
	sent         []*bot.SendMessageParams
	edited       []*bot.EditMessageTextParams
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	attempt := atomic.AddInt32(&f.sendAttempts, 1)
	if attempt <= f.failUntil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	return &tgmodels.Message{ID: f.successMsgID}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, params)
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func TestProperty9_MessageSendRetry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		failCount := rapid.IntRange(0, 3).Draw(rt, "failCount")
		sender := &fakeSender{
			failUntil:    int32(failCount),
			sendErr:      errors.New("network error"),
			successMsgID: rapid.IntRange(1, 10000).Draw(rt, "msgID"),
		}
		manager := NewMessageManager(sender, NewErrorManager(sender, 0))

		result, err := manager.SendWithRetry(context.Background(), &bot.SendMessageParams{
			ChatID: int64(rapid.IntRange(1, 1000000).Draw(rt, "chatID")),
			Text:   rapid.StringMatching(`[a-zA-Z ]{1,100}`).Draw(rt, "text"),
		})

		actualAttempts := int(atomic.LoadInt32(&sender.sendAttempts))
		if failCount < manager.maxRetry {
			if err != nil || result == nil || result.ID != sender.successMsgID {
				rt.Fatalf("expected success after %d failures, got %v %v", failCount, result, err)
			}
			if actualAttempts != failCount+1 {
				rt.Fatalf("expected %d attempts, got %d", failCount+1, actualAttempts)
			}
		} else {
			if err == nil {
				rt.Fatalf("expected failure after %d failures", failCount)
			}
			if actualAttempts != manager.maxRetry {
				rt.Fatalf("expected exactly %d attempts, got %d", manager.maxRetry, actualAttempts)
			}
		}
	})
}

func TestShowScreen_EditsInPlace(t *testing.T) {
	sender := &fakeSender{successMsgID: 1}
	manager := NewMessageManager(sender, nil)

	if err := manager.ShowScreen(context.Background(), 10, 55, "<b>hi</b>", nil); err != nil {
		t.Fatalf("ShowScreen failed: %v", err)
	}
	if len(sender.edited) != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected one edit and no sends, got %d/%d", len(sender.edited), len(sender.sent))
	}
	if sender.edited[0].ParseMode != tgmodels.ParseModeHTML {
		t.Fatalf("expected HTML parse mode, got %q", sender.edited[0].ParseMode)
	}
}

func TestShowScreen_FallsBackToSend(t *testing.T) {
	sender := &fakeSender{successMsgID: 1, editErr: errors.New("Bad Request: message to edit not found")}
	manager := NewMessageManager(sender, nil)

	keyboard := &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{{Text: "ok", CallbackData: "back"}}},
	}
	if err := manager.ShowScreen(context.Background(), 10, 55, "text", keyboard); err != nil {
		t.Fatalf("ShowScreen failed: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].ReplyMarkup == nil {
		t.Fatalf("expected a fresh message with keyboard, got %+v", sender.sent)
	}
}

func TestShowScreen_NotModifiedIsSuccess(t *testing.T) {
	sender := &fakeSender{editErr: errors.New("Bad Request: message is not modified")}
	manager := NewMessageManager(sender, nil)

	if err := manager.ShowScreen(context.Background(), 10, 55, "same", nil); err != nil {
		t.Fatalf("unchanged screen should not fail: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("unchanged screen must not be resent")
	}
}

func TestShowScreen_NewMessageWithoutID(t *testing.T) {
	sender := &fakeSender{successMsgID: 3}
	manager := NewMessageManager(sender, nil)

	if err := manager.ShowScreen(context.Background(), 10, 0, "hello", nil); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || len(sender.edited) != 0 {
		t.Fatalf("expected a send, got %d sends %d edits", len(sender.sent), len(sender.edited))
	}
}
