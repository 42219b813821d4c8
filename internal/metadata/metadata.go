// Package metadata resolves a media title through the Kitsu API.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEndpoint = "https://kitsu.io/api/"
	DefaultTimeout  = 10 * time.Second

	searchPath = "edge/anime"
)

var (
	ErrTitleRequired    = errors.New("metadata: title required")
	ErrNoResults        = errors.New("metadata: no results")
	ErrUnexpectedStatus = errors.New("metadata: unexpected status")
)

// Media is the subset of one search record fed into the activity.
type Media struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PosterURL string `json:"poster_url"`
}

type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("metadata: parse endpoint: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, http: hc}, nil
}

type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			CanonicalTitle string `json:"canonicalTitle"`
			PosterImage    *struct {
				Original string `json:"original"`
			} `json:"posterImage"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup issues one search request and returns the first record. It does not retry.
func (c *Client) Lookup(ctx context.Context, title string) (Media, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Media{}, ErrTitleRequired
	}

	u := c.base.ResolveReference(&url.URL{Path: searchPath})
	q := url.Values{}
	q.Set("filter[text]", title)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Media{}, err
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("metadata: lookup %q: %w", title, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Media{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Media{}, fmt.Errorf("metadata: decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return Media{}, fmt.Errorf("%w: %q", ErrNoResults, title)
	}

	first := out.Data[0]
	media := Media{
		ID:    first.ID,
		Title: first.Attributes.CanonicalTitle,
	}
	if first.Attributes.PosterImage != nil {
		media.PosterURL = first.Attributes.PosterImage.Original
	}
	if media.Title == "" {
		media.Title = title
	}
	log.Debug().Str("query", title).Str("id", media.ID).Str("title", media.Title).Msg("metadata.Lookup")
	return media, nil
}
