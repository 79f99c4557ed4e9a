package acquire

import (
	"context"
	"net/http"

	"mashup/internal/config"
	"mashup/internal/services/youtube"
	"mashup/internal/services/ytdlp"
)

// Searcher is the search half of a YouTube-backed provider.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]youtube.Video, error)
}

// Downloader is the fetch half of a YouTube-backed provider.
type Downloader interface {
	Download(ctx context.Context, videoID, url, dir string) (string, error)
}

// YouTubeProvider searches the YouTube Data API and downloads with yt-dlp.
type YouTubeProvider struct {
	Searcher   Searcher
	Downloader Downloader
}

// NewYouTubeProvider wires the provider from configuration.
func NewYouTubeProvider(cfg *config.Config) (*YouTubeProvider, error) {
	client, err := youtube.New(youtube.Config{
		APIKey:            cfg.Search.YouTubeAPIKey,
		BaseURL:           cfg.Search.BaseURL,
		RelevanceLanguage: cfg.Search.RelevanceLanguage,
		HTTPClient:        &http.Client{Timeout: cfg.SearchRequestTimeout()},
	})
	if err != nil {
		return nil, err
	}
	return &YouTubeProvider{
		Searcher: client,
		Downloader: ytdlp.New(ytdlp.Options{
			Binary:        cfg.Search.YtdlpBinary,
			Format:        cfg.Search.YtdlpFormat,
			SocketTimeout: cfg.Search.SocketTimeout,
			Retries:       cfg.Search.Retries,
			Timeout:       cfg.DownloadTimeout(),
		}),
	}, nil
}

// Search implements Provider.
func (p *YouTubeProvider) Search(ctx context.Context, query string, count int) ([]Candidate, error) {
	videos, err := p.Searcher.Search(ctx, query, count)
	candidates := make([]Candidate, 0, len(videos))
	for _, video := range videos {
		candidates = append(candidates, Candidate{ID: video.ID, Title: video.Title, URL: youtube.WatchURL(video.ID)})
	}
	return candidates, err
}

// Fetch implements Provider.
func (p *YouTubeProvider) Fetch(ctx context.Context, candidate Candidate, dir string) (string, error) {
	url := candidate.URL
	if url == "" {
		url = youtube.WatchURL(candidate.ID)
	}
	return p.Downloader.Download(ctx, candidate.ID, url, dir)
}
