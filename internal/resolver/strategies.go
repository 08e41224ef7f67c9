package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CineIndexBot/internal/caption"
	"CineIndexBot/internal/models"
	"CineIndexBot/internal/providers/omdb"
	"CineIndexBot/internal/providers/tmdb"
	"CineIndexBot/internal/storage"
)

const overviewLimit = 500

// MovieSearcher is the part of the TMDB client used here
type MovieSearcher interface {
	SearchMovies(ctx context.Context, query, region string) ([]tmdb.SearchResult, error)
	MovieDetails(ctx context.Context, id int) (*tmdb.Movie, error)
}

// TitleLookup is the part of the OMDb client used here
type TitleLookup interface {
	SearchByTitle(ctx context.Context, title string) (*omdb.Movie, error)
}

// TMDBStrategy is the primary provider. With a language preference only a
// result whose original language equals the preference is accepted.
type TMDBStrategy struct {
	Client MovieSearcher
}

func (s *TMDBStrategy) Name() string { return string(SourceTMDB) }

func (s *TMDBStrategy) Resolve(ctx context.Context, q Query) (*Result, error) {
	region := ""
	if l, ok := models.LookupLanguage(q.Lang); ok {
		region = l.Region
	}

	results, err := s.Client.SearchMovies(ctx, q.Text, region)
	if err != nil {
		return nil, err
	}

	var pick *tmdb.SearchResult
	for i := range results {
		if q.Lang == "" || strings.EqualFold(results[i].OriginalLanguage, q.Lang) {
			pick = &results[i]
			break
		}
	}
	if pick == nil {
		return nil, nil
	}

	movie, err := s.Client.MovieDetails(ctx, pick.ID)
	if err != nil {
		return nil, fmt.Errorf("details for %d: %w", pick.ID, err)
	}
	return tmdbResult(movie), nil
}

func tmdbResult(m *tmdb.Movie) *Result {
	genres := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		genres = append(genres, g.Name)
	}
	langs := make([]string, 0, len(m.SpokenLanguages))
	for _, l := range m.SpokenLanguages {
		langs = append(langs, firstNonEmpty(l.EnglishName, l.Name, l.ISO6391))
	}

	var b strings.Builder
	b.WriteString("🎬 " + m.Title)
	if len(m.ReleaseDate) >= 4 {
		b.WriteString(" (" + m.ReleaseDate[:4] + ")")
	}
	b.WriteString("\n")
	if m.VoteAverage > 0 {
		fmt.Fprintf(&b, "⭐ Rating: %.1f/10\n", m.VoteAverage)
	}
	writeField(&b, "🎭 Genres", strings.Join(genres, ", "))
	if m.Runtime > 0 {
		fmt.Fprintf(&b, "⏱ Runtime: %d min\n", m.Runtime)
	}
	writeField(&b, "📅 Release", m.ReleaseDate)
	writeField(&b, "🗣 Languages", strings.Join(langs, ", "))
	if overview := truncate(m.Overview, overviewLimit); overview != "" {
		b.WriteString("\n" + overview)
	}

	res := &Result{
		Source:  SourceTMDB,
		Kind:    models.MediaText,
		Caption: strings.TrimSpace(b.String()),
		Buttons: []models.Button{{Label: "TMDB", URL: fmt.Sprintf("https://www.themoviedb.org/movie/%d", m.ID)}},
	}
	if m.IMDbID != "" {
		res.Buttons = append(res.Buttons, models.Button{Label: "IMDb", URL: "https://www.imdb.com/title/" + m.IMDbID + "/"})
	}
	if poster := tmdb.ImageURL(m.PosterPath); poster != "" {
		res.Kind = models.MediaPhoto
		res.Media = poster
	}
	return res
}

// OMDbStrategy is the secondary provider. With a language preference the
// reported Language field must mention the preferred language's name.
type OMDbStrategy struct {
	Client TitleLookup
}

func (s *OMDbStrategy) Name() string { return string(SourceOMDb) }

func (s *OMDbStrategy) Resolve(ctx context.Context, q Query) (*Result, error) {
	movie, err := s.Client.SearchByTitle(ctx, q.Text)
	if err != nil || movie == nil {
		return nil, err
	}
	if q.Lang != "" {
		l, _ := models.LookupLanguage(q.Lang)
		if !movie.HasLanguage(l.Name) {
			return nil, nil
		}
	}
	return omdbResult(movie), nil
}

func omdbResult(m *omdb.Movie) *Result {
	var b strings.Builder
	b.WriteString("🎬 " + m.Title)
	if m.Year != "" {
		b.WriteString(" (" + m.Year + ")")
	}
	b.WriteString("\n")
	writeField(&b, "⭐ IMDb", m.IMDbRating)
	writeField(&b, "🎭 Genres", m.Genre)
	writeField(&b, "⏱ Runtime", m.Runtime)
	writeField(&b, "📅 Release", m.Released)
	writeField(&b, "🗣 Languages", m.Language)
	if plot := truncate(m.Plot, overviewLimit); plot != "" && plot != "N/A" {
		b.WriteString("\n" + plot)
	}

	res := &Result{
		Source:  SourceOMDb,
		Kind:    models.MediaText,
		Caption: strings.TrimSpace(b.String()),
	}
	if m.IMDbID != "" {
		res.Buttons = []models.Button{{Label: "IMDb", URL: "https://www.imdb.com/title/" + m.IMDbID + "/"}}
	}
	if poster := m.PosterURL(); poster != "" {
		res.Kind = models.MediaPhoto
		res.Media = poster
	}
	return res
}

// IndexStrategy serves content from the channel index. It only applies
// when the user has a language preference.
type IndexStrategy struct {
	Store storage.EntryStore
}

func (s *IndexStrategy) Name() string { return string(SourceIndex) }

func (s *IndexStrategy) Resolve(ctx context.Context, q Query) (*Result, error) {
	if q.Lang == "" {
		return nil, nil
	}
	entry, err := s.Store.Get(ctx, models.EntryKey(q.Text, q.Lang))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return EntryResult(entry), nil
}

// EntryResult renders an index entry for delivery. The caption is re-derived
// from the stored original so users never see the internal tags.
func EntryResult(entry *models.IndexEntry) *Result {
	parsed := caption.Parse(entry.OriginalCaption)
	text := parsed.Cleaned
	if text == "" {
		text = entry.Title
	}
	buttons := entry.Buttons
	if len(buttons) == 0 {
		buttons = parsed.Buttons
	}

	kind := entry.MediaKind
	if !entry.HasMedia() {
		kind = models.MediaText
	}
	return &Result{
		Source:  SourceIndex,
		Kind:    kind,
		Media:   entry.MediaRef,
		Caption: text,
		Buttons: buttons,
		Entry:   entry,
	}
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
