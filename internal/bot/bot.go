package bot

import (
	"context"
	"time"

	"CineIndexBot/internal/index"
	"CineIndexBot/internal/models"
	"CineIndexBot/internal/resolver"
	"CineIndexBot/internal/scheduler"
	"CineIndexBot/internal/search"
	"CineIndexBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Messenger is the part of the Telegram client the bot uses.
// *tgbotapi.BotAPI satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type Resolver interface {
	Resolve(ctx context.Context, q resolver.Query) (*resolver.Result, error)
}

type Indexer interface {
	Apply(ctx context.Context, post index.Post) *models.IndexEntry
	Reindex(ctx context.Context) (int, error)
}

type Suggester interface {
	Suggest(ctx context.Context, query, lang string, limit int) ([]search.Suggestion, error)
}

type Assistant interface {
	AnswerQuestion(ctx context.Context, question string, catalog []models.IndexEntry) (string, error)
}

type DeleteScheduler interface {
	Schedule(key scheduler.Key, after time.Duration, then func(ctx context.Context))
	Cancel(key scheduler.Key) bool
}

// Options wires the bot's collaborators. Suggester, Assistant and
// Scheduler are optional.
type Options struct {
	Resolver    Resolver
	Indexer     Indexer
	Entries     storage.EntryStore
	Preferences storage.PreferenceStore
	Suggester   Suggester
	Assistant   Assistant
	Scheduler   DeleteScheduler

	// AutoDeleteAfter removes index deliveries after this long; 0 keeps them.
	AutoDeleteAfter time.Duration
	// ForceSubChannelID, when set, limits lookups to members of that channel.
	ForceSubChannelID int64
	ForceSubInviteURL string
	IsAdmin           func(userID int64) bool
}

// Bot handles Telegram bot functionality
type Bot struct {
	api    Messenger
	opts   Options
	logger *zap.Logger
}

// NewBot creates a new Bot instance
func NewBot(api Messenger, opts Options, logger *zap.Logger) *Bot {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	return &Bot{
		api:    api,
		opts:   opts,
		logger: logger,
	}
}

// HandleUpdate dispatches one update. It recovers from panics so a bad
// update never takes the polling loop down.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered while handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	switch {
	case update.ChannelPost != nil:
		b.handleChannelPost(ctx, update.ChannelPost, false)
	case update.EditedChannelPost != nil:
		b.handleChannelPost(ctx, update.EditedChannelPost, true)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if !msg.Chat.IsPrivate() || msg.Text == "" {
		return
	}
	b.handleQuery(ctx, msg)
}

// sendMessage sends a message to a chat
func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) userLanguage(ctx context.Context, userID int64) string {
	lang, err := b.opts.Preferences.GetLanguage(ctx, userID)
	if err != nil {
		b.logger.Warn("Failed to load language preference", zap.Int64("user_id", userID), zap.Error(err))
		return ""
	}
	return lang
}

// isSubscribed checks the force-subscribe channel. Lookup failures let the
// user through.
func (b *Bot) isSubscribed(userID int64) bool {
	if b.opts.ForceSubChannelID == 0 {
		return true
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: b.opts.ForceSubChannelID,
			UserID: userID,
		},
	})
	if err != nil {
		b.logger.Warn("Failed to check channel membership", zap.Int64("user_id", userID), zap.Error(err))
		return true
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

func (b *Bot) sendJoinPrompt(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "📢 Please join our channel first, then send your request again.")
	if b.opts.ForceSubInviteURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("➕ Join channel", b.opts.ForceSubInviteURL),
			),
		)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send join prompt", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
