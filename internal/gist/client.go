// Package gist maps the dashboard's "load/save one JSON document" operations
// onto the GitHub Gist API: the document lives as a single well-known file
// inside one gist, found by paginated listing and created lazily on first
// save.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// Filename is the well-known file inside the gist holding the document.
	Filename = "freevibes.json"
	// TokenKey is the local cache key holding the GitHub personal access token.
	TokenKey = "freevibes-github-pat"
	// DefaultBaseURL is the production GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"

	gistDescription = "FreeVibes dashboard data"
	pageSize        = 100
)

// ErrAuthentication is returned by Login when GitHub rejects the token.
var ErrAuthentication = errors.New("github rejected the token")

// ErrNoDocument is returned by LoadData when no gist holds the dashboard
// file. This is the expected state for a fresh remote account and triggers
// the data service's fallback chain rather than an error surface.
var ErrNoDocument = errors.New("no remote dashboard document found")

// TokenStore persists the access token across restarts.
// Implemented by storage.Store.
type TokenStore interface {
	GetValue(key string) (value string, ok bool, err error)
	SetValue(key, value string) error
	DeleteValue(key string) error
}

// Client talks to the GitHub Gist API. The zero state is logged out; a token
// persisted by a previous session is picked up eagerly at construction.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore

	mu      sync.Mutex
	token   string
	gistID  string
	gistURL string
}

// New creates a Client against the given API base URL (DefaultBaseURL in
// production, an httptest server in tests).
func New(baseURL string, tokens TokenStore) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
	if tok, ok, err := tokens.GetValue(TokenKey); err == nil && ok {
		c.token = tok
	}
	return c
}

// HasToken reports whether a token is present (from this session or a
// previous one).
func (c *Client) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Token returns the stored token, or "".
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// gistEntry mirrors the fields of the list/get gist responses we consume.
type gistEntry struct {
	ID      string              `json:"id"`
	HTMLURL string              `json:"html_url"`
	Files   map[string]gistFile `json:"files"`
}

type gistFile struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
}

// Login stores the token and resolves an existing dashboard gist by
// paginated listing. It deliberately does not create a gist: creation is
// deferred to the first save so read-only logins don't litter the account.
// A 401/403 is reported as ErrAuthentication; the token is only persisted
// on success.
func (c *Client) Login(ctx context.Context, token string) error {
	id, url, err := c.findGist(ctx, token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.gistID = id
	c.gistURL = url
	c.mu.Unlock()

	if err := c.tokens.SetValue(TokenKey, token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	return nil
}

// Logout forgets the token and the resolved gist, in memory and on disk.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.token = ""
	c.gistID = ""
	c.gistURL = ""
	c.mu.Unlock()
	if err := c.tokens.DeleteValue(TokenKey); err != nil {
		return fmt.Errorf("removing stored token: %w", err)
	}
	return nil
}

// findGist pages through the account's gists until one contains the
// dashboard file. A page shorter than pageSize means there are no more
// pages; that outcome returns empty ids, not an error.
func (c *Client) findGist(ctx context.Context, token string) (id, url string, err error) {
	for page := 1; ; page++ {
		path := fmt.Sprintf("/gists?per_page=%d&page=%d", pageSize, page)
		resp, err := c.do(ctx, token, http.MethodGet, path, nil)
		if err != nil {
			return "", "", err
		}

		var entries []gistEntry
		err = json.NewDecoder(resp.Body).Decode(&entries)
		resp.Body.Close()
		if err != nil {
			return "", "", fmt.Errorf("decoding gist list: %w", err)
		}

		for _, g := range entries {
			if _, ok := g.Files[Filename]; ok {
				return g.ID, g.HTMLURL, nil
			}
		}
		if len(entries) < pageSize {
			return "", "", nil
		}
	}
}

// LoadData fetches the raw document content from the resolved gist,
// resolving it first if needed. Returns ErrNoDocument when no gist holds the
// dashboard file.
func (c *Client) LoadData(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	token, id := c.token, c.gistID
	c.mu.Unlock()

	if id == "" {
		var url string
		var err error
		id, url, err = c.findGist(ctx, token)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, ErrNoDocument
		}
		c.mu.Lock()
		c.gistID, c.gistURL = id, url
		c.mu.Unlock()
	}

	resp, err := c.do(ctx, token, http.MethodGet, "/gists/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var g gistEntry
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, fmt.Errorf("decoding gist: %w", err)
	}
	file, ok := g.Files[Filename]
	if !ok {
		return nil, ErrNoDocument
	}
	return []byte(file.Content), nil
}

// seedDocument is the example document a brand-new gist is created with, so
// a first-time save never leaves an empty shell behind.
const seedDocument = `{
  "settings": { "columns": 3, "darkModeType": "off" },
  "tabs": [{ "id": "main", "name": "Main", "order": 1000 }],
  "widgets": [
    {
      "id": "example-feed", "type": "rss", "title": "Hacker News", "tabId": "main",
      "position": { "column": 1, "order": 1000 }, "height": 6,
      "feedUrl": "https://news.ycombinator.com/rss"
    },
    {
      "id": "example-note", "type": "note", "title": "Notes", "tabId": "main",
      "position": { "column": 2, "order": 1000 }, "height": 6,
      "content": "Synced from FreeVibes.", "color": "yellow"
    }
  ]
}`

// SaveData overwrites the document file, creating the gist on first save.
func (c *Client) SaveData(ctx context.Context, data []byte) error {
	c.mu.Lock()
	token, id := c.token, c.gistID
	c.mu.Unlock()

	if id == "" {
		var err error
		id, _, err = c.findGist(ctx, token)
		if err != nil {
			return err
		}
		if id == "" {
			id, err = c.createGist(ctx, token)
			if err != nil {
				return err
			}
		}
	}

	// Pretty-print so the gist stays readable and diffable in the browser.
	var pretty bytes.Buffer
	content := string(data)
	if err := json.Indent(&pretty, data, "", "  "); err == nil {
		content = pretty.String()
	}

	body := map[string]any{
		"files": map[string]any{
			Filename: map[string]string{"content": content},
		},
	}
	resp, err := c.do(ctx, token, http.MethodPatch, "/gists/"+id, body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) createGist(ctx context.Context, token string) (string, error) {
	body := map[string]any{
		"description": gistDescription,
		"public":      false,
		"files": map[string]any{
			Filename: map[string]string{"content": seedDocument},
		},
	}
	resp, err := c.do(ctx, token, http.MethodPost, "/gists", body)
	if err != nil {
		return "", fmt.Errorf("creating gist: %w", err)
	}
	defer resp.Body.Close()

	var g gistEntry
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return "", fmt.Errorf("decoding created gist: %w", err)
	}

	c.mu.Lock()
	c.gistID, c.gistURL = g.ID, g.HTMLURL
	c.mu.Unlock()
	return g.ID, nil
}

// DocumentURL returns the gist's browser URL, or "" when none is resolved.
func (c *Client) DocumentURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gistURL != "" {
		return c.gistURL
	}
	if c.gistID != "" {
		return "https://gist.github.com/" + c.gistID
	}
	return ""
}

// do issues an authenticated API request and fails on any non-2xx status.
func (c *Client) do(ctx context.Context, token, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github api %s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w (status %d)", ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("github api %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}
