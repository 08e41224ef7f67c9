// Package tmdb is a minimal client for The Movie Database v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/w500"
)

type Client struct {
	apiBase string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. rps limits outbound requests per second.
func NewClient(apiBase, apiKey string, timeout time.Duration, rps float64) *Client {
	if apiBase == "" {
		apiBase = DefaultBaseURL
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type SearchResult struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	OriginalTitle    string `json:"original_title"`
	OriginalLanguage string `json:"original_language"`
	ReleaseDate      string `json:"release_date"`
	PosterPath       string `json:"poster_path"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SpokenLanguage struct {
	EnglishName string `json:"english_name"`
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
}

type Movie struct {
	ID               int              `json:"id"`
	IMDbID           string           `json:"imdb_id"`
	Title            string           `json:"title"`
	OriginalLanguage string           `json:"original_language"`
	Overview         string           `json:"overview"`
	Genres           []Genre          `json:"genres"`
	VoteAverage      float64          `json:"vote_average"`
	Runtime          int              `json:"runtime"`
	ReleaseDate      string           `json:"release_date"`
	PosterPath       string           `json:"poster_path"`
	SpokenLanguages  []SpokenLanguage `json:"spoken_languages"`
}

// SearchMovies searches movies by title. region is an optional ISO 3166-1 code.
func (c *Client) SearchMovies(ctx context.Context, query, region string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	if region != "" {
		q.Set("region", region)
	}

	var out struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// MovieDetails fetches the full record for a movie id.
func (c *Client) MovieDetails(ctx context.Context, id int) (*Movie, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid movie id %d", id)
	}
	var m Movie
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), url.Values{}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ImageURL returns the poster URL for a poster path, or "" if there is none.
func ImageURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	q.Set("api_key", c.apiKey)
	u := c.apiBase + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tmdb %s status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("tmdb %s decode: %w", path, err)
	}
	return nil
}
