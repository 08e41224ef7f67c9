package bot

import (
	"context"
	"fmt"

	"CineIndexBot/internal/index"
	"CineIndexBot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const ackEmoji = "👍"

func (b *Bot) handleChannelPost(ctx context.Context, msg *tgbotapi.Message, edit bool) {
	if msg.Chat == nil {
		return
	}
	b.opts.Indexer.Apply(ctx, postFromMessage(msg, edit))
}

// postFromMessage converts a channel message into an index post. Text-only
// posts use their text as the caption; photos use the largest size.
func postFromMessage(msg *tgbotapi.Message, edit bool) index.Post {
	post := index.Post{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Caption:   msg.Caption,
		IsEdit:    edit,
	}
	if post.Caption == "" {
		post.Caption = msg.Text
	}

	switch {
	case len(msg.Photo) > 0:
		post.Media = &index.Media{FileID: msg.Photo[len(msg.Photo)-1].FileID, Kind: models.MediaPhoto}
	case msg.Video != nil:
		post.Media = &index.Media{FileID: msg.Video.FileID, Kind: models.MediaVideo}
	case msg.Document != nil:
		post.Media = &index.Media{FileID: msg.Document.FileID, Kind: models.MediaDocument}
	}
	return post
}

// Actions performs the chat side effects needed outside of a single
// update: reacting to indexed posts and deleting expired deliveries.
type Actions struct {
	api Messenger
}

func NewActions(api Messenger) *Actions {
	return &Actions{api: api}
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// Acknowledge reacts to a source post to show it was indexed.
func (a *Actions) Acknowledge(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	if err := params.AddInterface("reaction", []reactionType{{Type: "emoji", Emoji: ackEmoji}}); err != nil {
		return fmt.Errorf("encode reaction: %w", err)
	}
	if _, err := a.api.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("set reaction: %w", err)
	}
	return nil
}

// DeleteMessage removes one message from a chat.
func (a *Actions) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}
