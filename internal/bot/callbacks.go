package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CineIndexBot/internal/models"
	"CineIndexBot/internal/resolver"
	"CineIndexBot/internal/scheduler"
	"CineIndexBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	langPrefix  = "lang:"
	langNone    = "none"
	queryPrefix = "q:"
)

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	switch data := cq.Data; {
	case data == closeData:
		b.handleClose(cq)
	case strings.HasPrefix(data, langPrefix):
		b.handleLanguageChoice(ctx, cq, strings.TrimPrefix(data, langPrefix))
	case strings.HasPrefix(data, queryPrefix):
		b.handleSuggestion(ctx, cq, strings.TrimPrefix(data, queryPrefix))
	default:
		b.answerCallback(cq.ID, "")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

// handleClose deletes an index delivery right away and drops its pending
// auto-delete.
func (b *Bot) handleClose(cq *tgbotapi.CallbackQuery) {
	b.answerCallback(cq.ID, "")
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID
	if b.opts.Scheduler != nil {
		b.opts.Scheduler.Cancel(scheduler.Key{ChatID: chatID, MessageID: messageID})
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Warn("Failed to delete closed message", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (b *Bot) handleLanguageChoice(ctx context.Context, cq *tgbotapi.CallbackQuery, code string) {
	var lang models.Language
	if code != langNone {
		l, ok := models.LookupLanguage(code)
		if !ok {
			b.answerCallback(cq.ID, "Unknown language")
			return
		}
		lang = l
	}

	if err := b.opts.Preferences.SetLanguage(ctx, cq.From.ID, lang.Code); err != nil {
		b.logger.Error("Failed to save language preference", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.answerCallback(cq.ID, "Could not save your choice, please try again")
		return
	}

	text := "🌐 Language preference cleared. Searches are not filtered by language."
	if lang.Code != "" {
		text = fmt.Sprintf("🌐 Language set to %s. Searches now only return %s titles.", lang.Name, lang.Name)
	}
	b.answerCallback(cq.ID, "Saved")

	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, text)
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Debug("Failed to update language menu", zap.Error(err))
		b.sendMessage(cq.Message.Chat.ID, text)
	}
}

// handleSuggestion delivers the catalog entry behind a suggestion button.
func (b *Bot) handleSuggestion(ctx context.Context, cq *tgbotapi.CallbackQuery, key string) {
	if cq.Message == nil || cq.Message.Chat == nil {
		b.answerCallback(cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	if !b.isSubscribed(cq.From.ID) {
		b.answerCallback(cq.ID, "")
		b.sendJoinPrompt(chatID)
		return
	}

	entry, err := b.opts.Entries.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		b.answerCallback(cq.ID, "This title is no longer available")
		return
	}
	if err != nil {
		b.logger.Error("Failed to load suggested entry", zap.String("key", key), zap.Error(err))
		b.answerCallback(cq.ID, "Something went wrong, please try again")
		return
	}
	b.answerCallback(cq.ID, "")
	b.deliver(chatID, 0, resolver.EntryResult(entry))
}
