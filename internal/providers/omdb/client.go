// Package omdb is a minimal client for the OMDb API.
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://www.omdbapi.com"

type Client struct {
	apiBase string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
}

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

type Movie struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Genre      string `json:"Genre"`
	IMDbRating string `json:"imdbRating"`
	Language   string `json:"Language"`
	Runtime    string `json:"Runtime"`
	Released   string `json:"Released"`
	Poster     string `json:"Poster"`
	Plot       string `json:"Plot"`
	IMDbID     string `json:"imdbID"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// SearchByTitle returns the movie matching title, or nil when OMDb reports no match.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*Movie, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("t", title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("omdb search status %d: %s", resp.StatusCode, string(body))
	}

	var m Movie
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&m); err != nil {
		return nil, fmt.Errorf("omdb search decode: %w", err)
	}
	if !strings.EqualFold(m.Response, "True") {
		return nil, nil
	}
	return &m, nil
}

// PosterURL returns the poster URL, or "" when OMDb has none.
func (m *Movie) PosterURL() string {
	p := strings.TrimSpace(m.Poster)
	if p == "" || strings.EqualFold(p, "N/A") {
		return ""
	}
	return p
}

// HasLanguage reports whether the comma-separated Language field mentions name.
func (m *Movie) HasLanguage(name string) bool {
	return name != "" && strings.Contains(strings.ToLower(m.Language), strings.ToLower(name))
}
