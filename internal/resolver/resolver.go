// Package resolver turns a user's free-text query into something to send back.
//
// Lookups are an ordered chain of strategies. The first strategy that
// produces a result wins; a strategy that fails is logged and treated as
// having found nothing, so the next one gets its turn.
package resolver

import (
	"context"
	"errors"
	"strings"

	"CineIndexBot/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no strategy produced a result
var ErrNotFound = errors.New("no result for query")

type Source string

const (
	SourceTMDB  Source = "tmdb"
	SourceOMDb  Source = "omdb"
	SourceIndex Source = "index"
)

// Query is one user search
type Query struct {
	Text   string
	UserID int64
	// Lang is the user's language preference, "" for none.
	Lang string
}

// Result is a rendered answer ready for delivery. Media is a platform file
// id for index results and a URL for provider results.
type Result struct {
	Source  Source
	Kind    models.MediaKind
	Media   string
	Caption string
	Buttons []models.Button
	Entry   *models.IndexEntry
}

// Strategy is one step of the lookup chain. It returns nil, nil when it has
// no answer.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, q Query) (*Result, error)
}

type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Normalize lower-cases and trims a query.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Resolve runs each strategy at most once, in order.
func (c *Chain) Resolve(ctx context.Context, q Query) (*Result, error) {
	q.Text = Normalize(q.Text)
	q.Lang = strings.ToLower(strings.TrimSpace(q.Lang))
	if q.Text == "" {
		return nil, ErrNotFound
	}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Resolve(ctx, q)
		if err != nil {
			c.logger.Warn("Lookup failed, trying next source",
				zap.String("strategy", s.Name()),
				zap.String("query", q.Text),
				zap.Error(err))
			continue
		}
		if res != nil {
			c.logger.Debug("Query resolved", zap.String("strategy", s.Name()), zap.String("query", q.Text))
			return res, nil
		}
	}
	return nil, ErrNotFound
}
