// Package youtube wraps the YouTube Data API v3 search endpoint used to turn
// a singer name into candidate video identifiers.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mashup/internal/services"
)

const (
	defaultBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultHTTPTimeout = 15 * time.Second
	maxPageSize        = 50
	maxPages           = 10
)

// Config describes the YouTube client configuration.
type Config struct {
	APIKey            string
	BaseURL           string
	RelevanceLanguage string
	HTTPClient        *http.Client
}

// Client wraps the YouTube Data API search endpoint.
type Client struct {
	apiKey   string
	language string
	baseURL  *url.URL
	http     *http.Client
}

// Video is one search hit.
type Video struct {
	ID      string
	Title   string
	Channel string
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "acquiring", "youtube", "YouTube API key is not configured (set YOUTUBE_API_KEY)", nil)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("youtube: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:   apiKey,
		language: strings.TrimSpace(cfg.RelevanceLanguage),
		baseURL:  baseURL,
		http:     client,
	}, nil
}

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns up to maxResults videos ordered by relevance. The API caps a
// page at 50 items, so larger requests follow nextPageToken. Duplicate IDs
// across pages are dropped.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Video, error) {
	if c == nil {
		return nil, errors.New("youtube: client is nil")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "acquiring", "youtube", "search query is empty", nil)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	videos := make([]Video, 0, maxResults)
	seen := make(map[string]struct{}, maxResults)
	pageToken := ""
	for page := 0; page < maxPages && len(videos) < maxResults; page++ {
		payload, err := c.searchPage(ctx, query, min(maxResults-len(videos), maxPageSize), pageToken)
		if err != nil {
			if len(videos) > 0 {
				// Keep what earlier pages produced.
				return videos, nil
			}
			return nil, err
		}
		for _, item := range payload.Items {
			id := strings.TrimSpace(item.ID.VideoID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			videos = append(videos, Video{ID: id, Title: item.Snippet.Title, Channel: item.Snippet.ChannelTitle})
			if len(videos) == maxResults {
				break
			}
		}
		if payload.NextPageToken == "" {
			break
		}
		pageToken = payload.NextPageToken
	}
	return videos, nil
}

func (c *Client) searchPage(ctx context.Context, query string, size int, pageToken string) (searchResponse, error) {
	endpoint := c.baseURL.JoinPath("search")
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(size))
	if c.language != "" {
		params.Set("relevanceLanguage", c.language)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return searchResponse{}, fmt.Errorf("youtube: build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return searchResponse{}, services.Wrap(services.ErrExternalTool, "acquiring", "youtube", "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := strings.TrimSpace(string(body))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return searchResponse{}, services.Wrap(services.ErrExternalTool, "acquiring", "youtube",
			fmt.Sprintf("search failed (%s)", resp.Status), errors.New(message))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return searchResponse{}, services.Wrap(services.ErrExternalTool, "acquiring", "youtube", "decode search response", err)
	}
	return payload, nil
}

// WatchURL returns the canonical watch URL for a video identifier.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
