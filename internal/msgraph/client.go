package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/source"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Client is a Microsoft Graph API client for calendar operations. It
// implements source.Source for the outlook provider.
type Client struct {
	auth       *Auth
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Graph API client.
func NewClient(auth *Auth, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		auth: auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) Name() model.EventSource { return model.EventSourceOutlook }

// calendarViewResponse represents the Graph API calendarView response.
type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	ID          string        `json:"id"`
	Subject     string        `json:"subject"`
	Start       graphDateTime `json:"start"`
	End         graphDateTime `json:"end"`
	IsCancelled bool          `json:"isCancelled"`
	IsAllDay    bool          `json:"isAllDay"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Events retrieves calendar items from Microsoft Graph for the UTC window
// [start, end). Cancelled items are dropped; everything else is handed over
// raw for normalization.
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]source.RawEvent, error) {
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"startDateTime": {start.UTC().Format("2006-01-02T15:04:05")},
		"endDateTime":   {end.UTC().Format("2006-01-02T15:04:05")},
		"$select":       {"id,subject,start,end,isCancelled,isAllDay"},
		"$top":          {"100"},
		"$orderby":      {"start/dateTime"},
	}

	requestURL := graphBaseURL + "/me/calendarView?" + params.Encode()
	var all []source.RawEvent

	for requestURL != "" {
		events, nextLink, err := c.fetchPage(ctx, token, requestURL)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		requestURL = nextLink
	}

	c.logger.Debug("graph calendar events fetched", "count", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, token, requestURL string) ([]source.RawEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", "outlook.timezone=\"UTC\"")

	var resp *http.Response
	maxRetries := 3
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, "", fmt.Errorf("%w: graph request failed: %v", source.ErrProvider, err)
			}
			time.Sleep(backoff(attempt))
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, "", fmt.Errorf("%w: graph returned status %d after %d retries", source.ErrProvider, resp.StatusCode, maxRetries)
			}
			c.logger.Debug("graph API retrying", "status", resp.StatusCode, "attempt", attempt+1)
			time.Sleep(backoff(attempt))
			continue
		}
		break
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading graph response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, "", fmt.Errorf("%w: graph rejected token", source.ErrAuthExpired)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: graph status %d: %s", source.ErrProvider, resp.StatusCode, truncateStr(string(body), 200))
	}

	var viewResp calendarViewResponse
	if err := json.Unmarshal(body, &viewResp); err != nil {
		return nil, "", fmt.Errorf("%w: parsing graph response: %v", source.ErrProvider, err)
	}

	var events []source.RawEvent
	for _, ge := range viewResp.Value {
		if ge.IsCancelled {
			continue
		}
		events = append(events, source.RawEvent{
			ExternalID: ge.ID,
			Title:      ge.Subject,
			Start:      graphStamp(ge.Start),
			End:        graphStamp(ge.End),
			AllDay:     ge.IsAllDay,
		})
	}

	return events, viewResp.NextLink, nil
}

// graphStamp rewrites a Graph dateTime into an offset-carrying stamp when the
// zone is known. With Prefer: outlook.timezone="UTC" the dateTime field comes
// back as "2006-01-02T15:04:05.0000000" in UTC, which normalization parses
// directly.
func graphStamp(gdt graphDateTime) string {
	if gdt.TimeZone == "" || gdt.TimeZone == "UTC" {
		return gdt.DateTime
	}
	loc, err := time.LoadLocation(gdt.TimeZone)
	if err != nil {
		return gdt.DateTime
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, gdt.DateTime, loc); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return gdt.DateTime
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
