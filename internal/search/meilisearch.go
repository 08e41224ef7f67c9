package search

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"CineIndexBot/internal/models"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Suggestion is a catalog title close to a user query
type Suggestion struct {
	Key   string
	Title string
	Lang  string
}

// MeiliSearch mirrors index entries into a Meilisearch index so that
// near-miss queries can be answered with title suggestions.
type MeiliSearch struct {
	client    *meilisearch.Client
	indexName string
	logger    *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewMeiliSearch creates a new MeiliSearch instance
func NewMeiliSearch(host, apiKey, indexName string, logger *zap.Logger) *MeiliSearch {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	return &MeiliSearch{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}
}

// documentID encodes an index key into a valid Meilisearch primary key.
func documentID(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// ensureIndex creates the index with its settings on first use. A failed
// attempt is retried on the next call.
func (m *MeiliSearch) ensureIndex() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	index := m.client.Index(m.indexName)
	if _, err := index.FetchInfo(); err != nil {
		task, err := m.client.CreateIndex(&meilisearch.IndexConfig{
			Uid:        m.indexName,
			PrimaryKey: "id",
		})
		if err != nil {
			return fmt.Errorf("create index %s: %w", m.indexName, err)
		}
		if _, err := m.client.WaitForTask(task.TaskUID); err != nil {
			return fmt.Errorf("wait for index %s: %w", m.indexName, err)
		}

		if _, err := index.UpdateSearchableAttributes(&[]string{"title"}); err != nil {
			m.logger.Warn("Failed to update searchable attributes", zap.Error(err))
		}
		if _, err := index.UpdateFilterableAttributes(&[]string{"lang"}); err != nil {
			m.logger.Warn("Failed to update filterable attributes", zap.Error(err))
		}
	}

	m.ready = true
	return nil
}

// IndexEntry adds or replaces the entry's search document
func (m *MeiliSearch) IndexEntry(ctx context.Context, entry *models.IndexEntry) error {
	if err := m.ensureIndex(); err != nil {
		return err
	}

	document := map[string]interface{}{
		"id":    documentID(entry.Key),
		"key":   entry.Key,
		"title": entry.Title,
		"lang":  entry.Lang,
	}

	task, err := m.client.Index(m.indexName).AddDocuments([]map[string]interface{}{document})
	if err != nil {
		return fmt.Errorf("add document %q: %w", entry.Key, err)
	}
	if _, err := m.client.WaitForTask(task.TaskUID); err != nil {
		return fmt.Errorf("wait for document %q: %w", entry.Key, err)
	}
	return nil
}

// Suggest returns up to limit catalog titles matching query. A non-empty
// lang restricts suggestions to that language.
func (m *MeiliSearch) Suggest(ctx context.Context, query, lang string, limit int) ([]Suggestion, error) {
	if err := m.ensureIndex(); err != nil {
		return nil, err
	}

	req := &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"key", "title", "lang"},
	}
	if lang != "" {
		req.Filter = fmt.Sprintf("lang = %q", lang)
	}

	result, err := m.client.Index(m.indexName).Search(strings.TrimSpace(query), req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return convertHits(result.Hits), nil
}

// Healthy reports whether the Meilisearch server answers
func (m *MeiliSearch) Healthy() bool {
	return m.client.IsHealthy()
}

func convertHits(hits []interface{}) []Suggestion {
	var out []Suggestion
	for _, hit := range hits {
		doc, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := doc["key"].(string)
		if key == "" {
			continue
		}
		title, _ := doc["title"].(string)
		lang, _ := doc["lang"].(string)
		out = append(out, Suggestion{Key: key, Title: title, Lang: lang})
	}
	return out
}
