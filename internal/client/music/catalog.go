// Package music searches a public track catalog and keeps the local
// playlist and playback state. Nothing here is persisted.
package music

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/sony/gobreaker"
)

const (
	DefaultCatalogURL = "https://itunes.apple.com/search"
	searchLimit       = 25
)

// Catalog queries the iTunes Search API.
type Catalog struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

func NewCatalog(endpoint string, hc *http.Client) *Catalog {
	if endpoint == "" {
		endpoint = DefaultCatalogURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Catalog{
		endpoint: endpoint,
		client:   hc,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "music-catalog",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type itunesResponse struct {
	ResultCount int           `json:"resultCount"`
	Results     []itunesTrack `json:"results"`
}

type itunesTrack struct {
	TrackID         int64  `json:"trackId"`
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	TrackTimeMillis int    `json:"trackTimeMillis"`
	PreviewURL      string `json:"previewUrl"`
	ArtworkURL100   string `json:"artworkUrl100"`
}

// Search returns songs matching term. Results without a preview are dropped
// since they cannot be played.
func (c *Catalog) Search(ctx context.Context, term string) ([]models.Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	out, err := c.cb.Execute(func() (any, error) {
		return c.search(ctx, term)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.Track), nil
}

func (c *Catalog) search(ctx context.Context, term string) ([]models.Track, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", strconv.Itoa(searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog status %d", resp.StatusCode)
	}

	var body itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	tracks := make([]models.Track, 0, len(body.Results))
	for _, r := range body.Results {
		if r.PreviewURL == "" {
			continue
		}
		tracks = append(tracks, models.Track{
			ID:         r.TrackID,
			Name:       r.TrackName,
			Artist:     r.ArtistName,
			Duration:   r.TrackTimeMillis / 1000,
			PreviewURL: r.PreviewURL,
			ArtworkURL: r.ArtworkURL100,
		})
	}
	return tracks, nil
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
