package models

import (
	"fmt"
	"strings"
	"time"
)

// MediaKind is the type of attachment carried by an indexed post
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaText     MediaKind = "text"
)

// Button is an inline URL button extracted from a caption
type Button struct {
	Label string `bson:"label" json:"label"`
	URL   string `bson:"url" json:"url"`
}

// IndexEntry is one indexed work from the source channel
type IndexEntry struct {
	Key             string    `bson:"_id" json:"key"`
	Title           string    `bson:"title" json:"title"`
	Lang            string    `bson:"lang" json:"lang"`
	MediaRef        string    `bson:"media_ref,omitempty" json:"media_ref,omitempty"`
	MediaKind       MediaKind `bson:"media_kind" json:"media_kind"`
	OriginalCaption string    `bson:"original_caption" json:"original_caption"`
	SourceMessageID int       `bson:"source_message_id" json:"source_message_id"`
	Buttons         []Button  `bson:"buttons,omitempty" json:"buttons,omitempty"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMedia reports whether the entry points at a platform file
func (e *IndexEntry) HasMedia() bool {
	return e.MediaRef != "" && e.MediaKind != MediaText && e.MediaKind != ""
}

// EntryKey builds the normalized "title_lang" lookup key.
func EntryKey(title, lang string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(strings.TrimSpace(title)), strings.ToLower(strings.TrimSpace(lang)))
}

// UserPreference holds the per-user language choice. An empty Lang means no preference.
type UserPreference struct {
	UserID    int64     `bson:"_id" json:"user_id"`
	Lang      string    `bson:"lang,omitempty" json:"lang,omitempty"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
