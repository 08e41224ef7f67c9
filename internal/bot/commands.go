package bot

import (
	"context"
	"fmt"
	"strings"

	"CineIndexBot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const startText = `Hello! 🎬 Send me a movie title and I'll find it for you.

Pick your language with /language to search our own library as well. Use /help to see available commands.`

const helpText = `Available commands:
/language - Choose the language you search in
/ask <question> - Ask what our library has to offer
/help - Show this help message

Just send a movie title to search.`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMessage(chatID, startText)
	case "help":
		b.sendMessage(chatID, helpText)
	case "language":
		b.sendLanguageMenu(ctx, chatID, msg.From.ID)
	case "ask":
		b.handleAsk(ctx, msg)
	case "stats":
		b.handleStats(ctx, msg)
	case "reindex":
		b.handleReindex(ctx, msg)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) sendLanguageMenu(ctx context.Context, chatID, userID int64) {
	current := b.userLanguage(ctx, userID)
	msg := tgbotapi.NewMessage(chatID, "🌐 Choose the language of the movies you want:")
	msg.ReplyMarkup = languageKeyboard(current)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send language menu", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// languageKeyboard lays the languages out two per row, marking current.
func languageKeyboard(current string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, l := range models.Languages {
		label := l.Name
		if l.Code == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, langPrefix+l.Code))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	none := "🚫 No preference"
	if current == "" {
		none = "✅ " + none
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(none, langPrefix+langNone)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleAsk handles the /ask command
func (b *Bot) handleAsk(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if b.opts.Assistant == nil {
		b.sendMessage(chatID, "🤖 /ask is not available right now.")
		return
	}

	question := strings.TrimSpace(msg.CommandArguments())
	if question == "" {
		b.sendMessage(chatID, "Please provide a question. Example: /ask any french thrillers?")
		return
	}

	catalog, err := b.opts.Entries.List(ctx)
	if err != nil {
		b.logger.Error("Failed to list catalog", zap.Error(err))
		b.sendMessage(chatID, apologyText)
		return
	}
	if len(catalog) == 0 {
		b.sendMessage(chatID, "Our library is empty right now. Check back later!")
		return
	}

	b.logger.Info("Processing question", zap.Int64("user_id", msg.From.ID), zap.Int("catalog_size", len(catalog)))
	answer, err := b.opts.Assistant.AnswerQuestion(ctx, question, catalog)
	if err != nil {
		b.logger.Error("Failed to answer question", zap.Error(err))
		b.sendMessage(chatID, "Sorry, I couldn't answer that right now.")
		return
	}
	b.sendMessage(chatID, clip(answer, textLimit))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	n, err := b.opts.Entries.Count(ctx)
	if err != nil {
		b.logger.Error("Failed to count entries", zap.Error(err))
		b.sendMessage(msg.Chat.ID, apologyText)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("📊 Indexed titles: %d", n))
}

func (b *Bot) handleReindex(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	n, err := b.opts.Indexer.Reindex(ctx)
	if err != nil {
		b.logger.Error("Reindex failed", zap.Int("rewritten", n), zap.Error(err))
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("⚠️ Reindex stopped after %d entries: %v", n, err))
		return
	}
	b.logger.Info("Reindex finished", zap.Int("rewritten", n))
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("🔁 Re-indexed %d entries.", n))
}

func (b *Bot) requireAdmin(msg *tgbotapi.Message) bool {
	if b.opts.IsAdmin(msg.From.ID) {
		return true
	}
	b.sendMessage(msg.Chat.ID, "⛔ This command is for admins only.")
	return false
}
