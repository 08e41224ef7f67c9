package storage

import (
	"context"
	"errors"

	"CineIndexBot/internal/models"
)

// ErrNotFound is returned when a key has no entry
var ErrNotFound = errors.New("entry not found")

// EntryStore defines the interface for the channel content index
type EntryStore interface {
	Get(ctx context.Context, key string) (*models.IndexEntry, error)
	Put(ctx context.Context, entry *models.IndexEntry) error
	List(ctx context.Context) ([]models.IndexEntry, error)
	Count(ctx context.Context) (int, error)
}

// PreferenceStore defines the interface for per-user language preferences
type PreferenceStore interface {
	// GetLanguage returns "" when the user has no preference.
	GetLanguage(ctx context.Context, userID int64) (string, error)
	// SetLanguage stores lang; an empty lang clears the preference.
	SetLanguage(ctx context.Context, userID int64, lang string) error
}
