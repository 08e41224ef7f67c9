package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"CineIndexBot/internal/models"

	"go.uber.org/zap"
)

// snapshot is the persisted file layout.
type snapshot struct {
	Entries     map[string]models.IndexEntry `json:"entries"`
	Preferences map[int64]string             `json:"preferences"`
	SavedAt     time.Time                    `json:"saved_at"`
}

// MemoryStore keeps entries and preferences in process memory and
// snapshots them to a JSON file.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.IndexEntry
	prefs   map[int64]string
	path    string
	dirty   bool
}

// NewMemoryStore creates a MemoryStore. An empty path disables snapshots.
func NewMemoryStore(path string) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.IndexEntry),
		prefs:   make(map[int64]string),
		path:    path,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.Buttons = append([]models.Button(nil), e.Buttons...)
	return &e, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *models.IndexEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("put entry: empty key")
	}
	e := *entry
	e.Buttons = append([]models.Button(nil), entry.Buttons...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	s.dirty = true
	return nil
}

// List returns all entries sorted by key.
func (s *MemoryStore) List(ctx context.Context) ([]models.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.IndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) GetLanguage(ctx context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[userID], nil
}

func (s *MemoryStore) SetLanguage(ctx context.Context, userID int64, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lang == "" {
		delete(s.prefs, userID)
	} else {
		s.prefs[userID] = lang
	}
	s.dirty = true
	return nil
}

// LoadFromDisk replaces the in-memory state with the snapshot file.
// A missing file is not an error.
func (s *MemoryStore) LoadFromDisk() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.IndexEntry, len(snap.Entries))
	for k, e := range snap.Entries {
		s.entries[k] = e
	}
	s.prefs = make(map[int64]string, len(snap.Preferences))
	for id, lang := range snap.Preferences {
		s.prefs[id] = lang
	}
	s.dirty = false
	return nil
}

// SaveToDisk writes the snapshot atomically (temp file + rename).
func (s *MemoryStore) SaveToDisk() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	snap := snapshot{
		Entries:     make(map[string]models.IndexEntry, len(s.entries)),
		Preferences: make(map[int64]string, len(s.prefs)),
		SavedAt:     time.Now(),
	}
	for k, e := range s.entries {
		snap.Entries[k] = e
	}
	for id, lang := range s.prefs {
		snap.Preferences[id] = lang
	}
	s.dirty = false
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// RunSnapshots saves the store every interval while it has unsaved
// changes, and once more when ctx is done.
func (s *MemoryStore) RunSnapshots(ctx context.Context, every time.Duration, logger *zap.Logger) {
	if s.path == "" || every <= 0 {
		<-ctx.Done()
		s.finalSave(logger)
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finalSave(logger)
			return
		case <-ticker.C:
			if !s.isDirty() {
				continue
			}
			if err := s.SaveToDisk(); err != nil {
				logger.Warn("Snapshot failed", zap.String("path", s.path), zap.Error(err))
				s.markDirty()
				continue
			}
			logger.Debug("Snapshot written", zap.String("path", s.path))
		}
	}
}

func (s *MemoryStore) finalSave(logger *zap.Logger) {
	if err := s.SaveToDisk(); err != nil {
		logger.Error("Final snapshot failed", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *MemoryStore) isDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *MemoryStore) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}
