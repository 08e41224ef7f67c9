// Package index keeps the channel content index up to date from source channel posts.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CineIndexBot/internal/caption"
	"CineIndexBot/internal/models"
	"CineIndexBot/internal/storage"

	"go.uber.org/zap"
)

// Media is the attachment carried by a post
type Media struct {
	FileID string
	Kind   models.MediaKind
}

// Post is a channel post or edited channel post
type Post struct {
	ChatID    int64
	MessageID int
	Caption   string
	Media     *Media
	IsEdit    bool
}

// Acknowledger marks a source post as indexed (e.g. with a reaction).
type Acknowledger interface {
	Acknowledge(ctx context.Context, chatID int64, messageID int) error
}

// Mirror receives every stored entry, e.g. a search index.
type Mirror interface {
	IndexEntry(ctx context.Context, entry *models.IndexEntry) error
}

// Updater applies source channel posts to the entry store.
type Updater struct {
	store     storage.EntryStore
	channelID int64
	ack       Acknowledger
	mirror    Mirror
	logger    *zap.Logger
	now       func() time.Time
}

// NewUpdater creates an Updater for posts from channelID. ack and mirror may be nil.
func NewUpdater(store storage.EntryStore, channelID int64, ack Acknowledger, mirror Mirror, logger *zap.Logger) *Updater {
	return &Updater{
		store:     store,
		channelID: channelID,
		ack:       ack,
		mirror:    mirror,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply indexes post and returns the stored entry, or nil when the post
// was skipped. It never fails: every problem is logged.
func (u *Updater) Apply(ctx context.Context, post Post) (stored *models.IndexEntry) {
	log := u.logger.With(
		zap.Int64("chat_id", post.ChatID),
		zap.Int("message_id", post.MessageID),
		zap.Bool("edit", post.IsEdit),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered while indexing post", zap.Any("panic", r))
			stored = nil
		}
	}()

	if post.ChatID != u.channelID {
		log.Debug("Ignoring post from unexpected chat")
		return nil
	}
	if post.Caption == "" {
		log.Debug("Ignoring post without caption")
		return nil
	}

	parsed := caption.Parse(post.Caption)
	if !parsed.Indexable() {
		log.Debug("Ignoring post without #Title/#Lang tags",
			zap.Bool("has_title", parsed.Title != ""),
			zap.Bool("has_lang", parsed.Lang != ""))
		return nil
	}
	key := parsed.Key()
	log = log.With(zap.String("key", key))

	entry := &models.IndexEntry{
		Key:             key,
		Title:           parsed.Title,
		Lang:            parsed.Lang,
		MediaKind:       models.MediaText,
		OriginalCaption: post.Caption,
		SourceMessageID: post.MessageID,
		Buttons:         parsed.Buttons,
		UpdatedAt:       u.now(),
	}

	if post.Media != nil && post.Media.FileID != "" {
		entry.MediaRef = post.Media.FileID
		entry.MediaKind = post.Media.Kind
	} else {
		existing, err := u.store.Get(ctx, key)
		switch {
		case err == nil:
			// Caption-only edits keep the attachment seen earlier.
			entry.MediaRef = existing.MediaRef
			entry.MediaKind = existing.MediaKind
		case errors.Is(err, storage.ErrNotFound):
		default:
			log.Error("Failed to look up existing entry", zap.Error(err))
			return nil
		}
	}

	if err := u.store.Put(ctx, entry); err != nil {
		log.Error("Failed to store entry", zap.Error(err))
		return nil
	}
	log.Info("Indexed post", zap.String("media_kind", string(entry.MediaKind)), zap.Int("buttons", len(entry.Buttons)))

	if u.mirror != nil {
		if err := u.mirror.IndexEntry(ctx, entry); err != nil {
			log.Warn("Failed to mirror entry to search index", zap.Error(err))
		}
	}
	if u.ack != nil {
		if err := u.ack.Acknowledge(ctx, post.ChatID, post.MessageID); err != nil {
			log.Debug("Failed to acknowledge post", zap.Error(err))
		}
	}
	return entry
}

// Reindex re-parses the original caption of every stored entry and rewrites
// its title and buttons. Entries whose caption no longer yields the same key
// are left untouched. It returns the number of entries rewritten.
func (u *Updater) Reindex(ctx context.Context) (int, error) {
	entries, err := u.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}

	rewritten := 0
	for i := range entries {
		entry := entries[i]
		parsed := caption.Parse(entry.OriginalCaption)
		if parsed.Key() != entry.Key {
			u.logger.Warn("Stored caption no longer matches its key", zap.String("key", entry.Key), zap.String("parsed_key", parsed.Key()))
			continue
		}
		entry.Title = parsed.Title
		entry.Lang = parsed.Lang
		entry.Buttons = parsed.Buttons
		if err := u.store.Put(ctx, &entry); err != nil {
			return rewritten, fmt.Errorf("store entry %q: %w", entry.Key, err)
		}
		if u.mirror != nil {
			if err := u.mirror.IndexEntry(ctx, &entry); err != nil {
				u.logger.Warn("Failed to mirror entry to search index", zap.String("key", entry.Key), zap.Error(err))
			}
		}
		rewritten++
	}
	return rewritten, nil
}
