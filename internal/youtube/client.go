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

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// MaxIDsPerCall is the videos.list limit on comma-joined ids.
const MaxIDsPerCall = 50

var ErrMissingAPIKey = errors.New("missing YOUTUBE_API_KEY")

// APIError is a non-2xx response from the Data API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api http %d: %s", e.Status, e.Body)
}

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	// Limiter paces outgoing requests. Nil means unlimited.
	Limiter *rate.Limiter
}

func New(apiKey string, timeout time.Duration, perSecond float64) *Client {
	c := &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
	if perSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return c
}

// EventType is the search.list eventType filter.
type EventType string

const (
	EventLive     EventType = "live"
	EventUpcoming EventType = "upcoming"
)

// SearchHit is a search.list result. Search responses carry no live timing,
// so only identity and title are known at this point.
type SearchHit struct {
	VideoID string
	Title   string
}

// LiveDetails is the liveStreamingDetails part of videos.list, as raw strings.
type LiveDetails struct {
	ActualStartTime    string `json:"actualStartTime"`
	ScheduledStartTime string `json:"scheduledStartTime"`
	ActualEndTime      string `json:"actualEndTime"`
}

func (c *Client) SearchEvents(ctx context.Context, channelID string, eventType EventType, maxResults int) ([]SearchHit, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("channelId", channelID)
	q.Set("eventType", string(eventType))
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(maxResults))

	var resp struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, "search", q, &resp); err != nil {
		return nil, err
	}
	out := make([]SearchHit, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		out = append(out, SearchHit{VideoID: it.ID.VideoID, Title: it.Snippet.Title})
	}
	return out, nil
}

// LiveDetails looks up liveStreamingDetails for up to MaxIDsPerCall videos.
// Videos the API does not return are absent from the map.
func (c *Client) LiveDetails(ctx context.Context, videoIDs []string) (map[string]LiveDetails, error) {
	if len(videoIDs) == 0 {
		return map[string]LiveDetails{}, nil
	}
	if len(videoIDs) > MaxIDsPerCall {
		return nil, fmt.Errorf("LiveDetails expects <=%d video IDs, got %d", MaxIDsPerCall, len(videoIDs))
	}
	q := url.Values{}
	q.Set("part", "liveStreamingDetails")
	q.Set("id", strings.Join(videoIDs, ","))

	var resp struct {
		Items []struct {
			ID                   string      `json:"id"`
			LiveStreamingDetails LiveDetails `json:"liveStreamingDetails"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, "videos", q, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]LiveDetails, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID == "" {
			continue
		}
		out[it.ID] = it.LiveStreamingDetails
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, resource string, q url.Values, out any) error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	q.Set("key", c.APIKey)
	rawURL := strings.TrimRight(base, "/") + "/" + resource + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode != http.StatusOK {
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
