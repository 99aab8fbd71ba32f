// Package gcal fetches Google Calendar events over the REST API using an
// OAuth2 token cached on disk.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/source"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

const calendarScope = "https://www.googleapis.com/auth/calendar.readonly"

// Client fetches events from one Google calendar. It implements
// source.Source for the google provider.
type Client struct {
	conf       *oauth2.Config
	calendarID string
	logger     *slog.Logger
}

func NewClient(clientID, clientSecret, calendarID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendarScope},
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		},
		calendarID: calendarID,
		logger:     logger,
	}
}

func (c *Client) Name() model.EventSource { return model.EventSourceGoogle }

// AuthURL returns the consent URL the user visits to authorize access.
func (c *Client) AuthURL() string {
	return c.conf.AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return saveToken(tok)
}

type eventsResponse struct {
	Items         []gcalEvent `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

type gcalEvent struct {
	ID      string       `json:"id"`
	Summary string       `json:"summary"`
	Status  string       `json:"status"`
	Start   gcalDateTime `json:"start"`
	End     gcalDateTime `json:"end"`
}

type gcalDateTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

// Events retrieves calendar items overlapping the UTC window [start, end).
// Recurring events are expanded server-side via singleEvents.
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]source.RawEvent, error) {
	httpClient, err := c.authedClient(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"timeMin":      {start.UTC().Format(time.RFC3339)},
		"timeMax":      {end.UTC().Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"maxResults":   {"250"},
	}

	var all []source.RawEvent
	pageToken := ""
	for {
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		requestURL := calendarBaseURL + "/calendars/" + url.PathEscape(c.calendarID) + "/events?" + params.Encode()

		page, next, err := c.fetchPage(ctx, httpClient, requestURL)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		pageToken = next
	}

	c.logger.Debug("google calendar events fetched", "count", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, httpClient *http.Client, requestURL string) ([]source.RawEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating calendar request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: calendar request failed: %v", source.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading calendar response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, "", fmt.Errorf("%w: calendar API status %d", source.ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: calendar status %d", source.ErrProvider, resp.StatusCode)
	}

	var page eventsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("%w: parsing calendar response: %v", source.ErrProvider, err)
	}

	var events []source.RawEvent
	for _, item := range page.Items {
		if item.Status == "cancelled" {
			continue
		}
		raw := source.RawEvent{
			ExternalID:   item.ID,
			Title:        item.Summary,
			CalendarName: c.calendarID,
		}
		if item.Start.Date != "" {
			raw.AllDay = true
			raw.Start = item.Start.Date
			raw.End = item.End.Date
		} else {
			raw.Start = item.Start.DateTime
			raw.End = item.End.DateTime
		}
		events = append(events, raw)
	}
	return events, page.NextPageToken, nil
}

// authedClient wraps the cached token in an auto-refreshing HTTP client and
// persists the refreshed token when it changes.
func (c *Client) authedClient(ctx context.Context) (*http.Client, error) {
	if c.conf.ClientID == "" {
		return nil, fmt.Errorf("%w: google client id not set", source.ErrNotConfigured)
	}

	tok, err := loadToken()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: run 'daytally calendar auth --google' first", source.ErrNotConfigured)
	}

	ts := c.conf.TokenSource(ctx, tok)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrAuthExpired, err)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := saveToken(fresh); err != nil {
			c.logger.Warn("failed to cache refreshed google token", "error", err)
		}
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(fresh, ts)), nil
}

func tokenFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "daytally", "google_token.json"), nil
}

func loadToken() (*oauth2.Token, error) {
	path, err := tokenFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &tok, nil
}

func saveToken(tok *oauth2.Token) error {
	path, err := tokenFilePath()
	if err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming token file: %w", err)
	}
	return nil
}
