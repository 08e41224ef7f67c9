package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CineIndexBot/internal/models"
	"CineIndexBot/internal/resolver"
	"CineIndexBot/internal/scheduler"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	mediaCaptionLimit = 1024
	textLimit         = 4096
	callbackDataLimit = 64
	maxSuggestions    = 3

	closeData = "close"

	notFoundText = "😔 Nothing found for your request.\n\nCheck the spelling, or pick a language with /language to search our library."
	apologyText  = "⚠️ Sorry, something went wrong while sending that. Please try again later."
)

func (b *Bot) handleQuery(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isSubscribed(msg.From.ID) {
		b.sendJoinPrompt(chatID)
		return
	}

	lang := b.userLanguage(ctx, msg.From.ID)
	res, err := b.opts.Resolver.Resolve(ctx, resolver.Query{Text: msg.Text, UserID: msg.From.ID, Lang: lang})
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		b.replyNotFound(ctx, chatID, msg.Text, lang)
		return
	case err != nil:
		b.logger.Error("Failed to resolve query", zap.Int64("chat_id", chatID), zap.String("query", msg.Text), zap.Error(err))
		b.sendMessage(chatID, apologyText)
		return
	}
	b.deliver(chatID, msg.MessageID, res)
}

// deliver sends res to chatID. A failed poster falls back to plain text.
// Index deliveries get a close button and, with auto-delete enabled, are
// removed together with the request message requestID (0 for none).
func (b *Bot) deliver(chatID int64, requestID int, res *resolver.Result) {
	fromIndex := res.Source == resolver.SourceIndex
	log := b.logger.With(zap.Int64("chat_id", chatID), zap.String("source", string(res.Source)))

	sent, err := b.api.Send(renderResult(chatID, res, fromIndex))
	if err != nil && !fromIndex && res.Kind != models.MediaText {
		log.Warn("Failed to send poster, falling back to text", zap.Error(err))
		textOnly := *res
		textOnly.Kind = models.MediaText
		textOnly.Media = ""
		sent, err = b.api.Send(renderResult(chatID, &textOnly, false))
	}
	if err != nil {
		log.Error("Failed to deliver result", zap.Error(err))
		b.sendMessage(chatID, apologyText)
		return
	}

	if fromIndex {
		b.scheduleCleanup(chatID, requestID, sent.MessageID)
	}
}

func (b *Bot) scheduleCleanup(chatID int64, requestID, replyID int) {
	after := b.opts.AutoDeleteAfter
	if b.opts.Scheduler == nil || after <= 0 {
		return
	}
	if requestID != 0 {
		b.opts.Scheduler.Schedule(scheduler.Key{ChatID: chatID, MessageID: requestID}, after, nil)
	}
	b.opts.Scheduler.Schedule(scheduler.Key{ChatID: chatID, MessageID: replyID}, after, func(ctx context.Context) {
		b.sendMessage(chatID, fmt.Sprintf("⌛ The file was removed after %s. Send the title again to get it back.", humanDuration(after)))
	})
}

func (b *Bot) replyNotFound(ctx context.Context, chatID int64, query, lang string) {
	msg := tgbotapi.NewMessage(chatID, notFoundText)
	if kb := b.suggestionKeyboard(ctx, query, lang); kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send not-found reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// suggestionKeyboard offers catalog titles close to query, or nil.
func (b *Bot) suggestionKeyboard(ctx context.Context, query, lang string) *tgbotapi.InlineKeyboardMarkup {
	if b.opts.Suggester == nil {
		return nil
	}
	suggestions, err := b.opts.Suggester.Suggest(ctx, query, lang, maxSuggestions)
	if err != nil {
		b.logger.Debug("Failed to fetch suggestions", zap.String("query", query), zap.Error(err))
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range suggestions {
		data := queryPrefix + s.Key
		if len(data) > callbackDataLimit {
			continue
		}
		label := s.Title
		if l, ok := models.LookupLanguage(s.Lang); ok {
			label += " (" + l.Name + ")"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔎 "+label, data)))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func renderResult(chatID int64, res *resolver.Result, closable bool) tgbotapi.Chattable {
	markup := resultKeyboard(res.Buttons, closable)
	if res.Media != "" {
		file := mediaFile(res)
		text := clip(res.Caption, mediaCaptionLimit)
		switch res.Kind {
		case models.MediaPhoto:
			cfg := tgbotapi.NewPhoto(chatID, file)
			cfg.Caption = text
			if markup != nil {
				cfg.ReplyMarkup = markup
			}
			return cfg
		case models.MediaVideo:
			cfg := tgbotapi.NewVideo(chatID, file)
			cfg.Caption = text
			if markup != nil {
				cfg.ReplyMarkup = markup
			}
			return cfg
		case models.MediaDocument:
			cfg := tgbotapi.NewDocument(chatID, file)
			cfg.Caption = text
			if markup != nil {
				cfg.ReplyMarkup = markup
			}
			return cfg
		}
	}

	cfg := tgbotapi.NewMessage(chatID, clip(res.Caption, textLimit))
	if markup != nil {
		cfg.ReplyMarkup = markup
	}
	return cfg
}

// mediaFile resends stored uploads by file id and provider posters by URL.
func mediaFile(res *resolver.Result) tgbotapi.RequestFileData {
	if res.Source == resolver.SourceIndex {
		return tgbotapi.FileID(res.Media)
	}
	return tgbotapi.FileURL(res.Media)
}

func resultKeyboard(buttons []models.Button, closable bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL)))
	}
	if closable {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Close", closeData)))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// clip keeps s within limit runes.
func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
	return d.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
