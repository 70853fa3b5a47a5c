package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultUserAgent = "musiclinks/1.0"

// API is the raw catalog surface. Every data call takes the session
// explicitly; re-authentication issues a new session value instead of
// mutating shared state.
type API interface {
	Authenticate(ctx context.Context) (Session, error)
	GetArtist(ctx context.Context, session Session, id string) (Artist, error)
	GetReleasePage(ctx context.Context, session Session, artistID string, page int) (ReleasePage, error)
	GetRelease(ctx context.Context, session Session, id string) (Release, error)
	Search(ctx context.Context, session Session, term, kind string) ([]SearchResult, error)
}

// Archiver persists raw catalog payloads for later reprocessing.
type Archiver interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Config holds the parameters of the HTTP catalog client.
type Config struct {
	BaseURL     string
	Token       string
	UserAgent   string
	HTTPTimeout time.Duration
}

// Client talks JSON over HTTP to the catalog service.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	archiver   Archiver
	logger     *zap.Logger
}

// NewClient builds a Client. The archiver is optional; when set, every raw
// response body is archived under <op>/<id-ish path>.json.
func NewClient(cfg Config, archiver Archiver, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("catalog token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		userAgent:  ua,
		httpClient: &http.Client{Timeout: timeout},
		archiver:   archiver,
		logger:     logger,
	}, nil
}

// Authenticate exchanges the configured token for a fresh session.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	const op = "authenticate"

	payload, err := json.Marshal(map[string]string{"token": c.token})
	if err != nil {
		return Session{}, decodeError(op, err)
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/sessions", bytes.NewReader(payload),
	)
	if err != nil {
		return Session{}, decodeError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, transportError(op, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// A rejected token is permanent even though the status is 401.
		if resp.StatusCode == http.StatusUnauthorized {
			return Session{}, &Error{
				Op: op, Class: ClassPermanent, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("token rejected"),
			}
		}
		return Session{}, statusError(op, resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, decodeError(op, err)
	}
	if session.ID == "" {
		return Session{}, decodeError(op, fmt.Errorf("session id missing in response"))
	}
	c.logger.Debug("catalog session established", zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// GetArtist fetches one artist by catalog id.
func (c *Client) GetArtist(ctx context.Context, session Session, id string) (Artist, error) {
	const op = "get_artist"

	var artist Artist
	path := "/artists/" + url.PathEscape(id)
	if err := c.get(ctx, op, session, path, nil, &artist); err != nil {
		return Artist{}, err
	}
	if err := artist.Validate(); err != nil {
		return Artist{}, decodeError(op, err)
	}
	return artist, nil
}

// GetReleasePage fetches one zero-indexed page of an artist's release
// listing. The total page count is available from any page's pagination.
func (c *Client) GetReleasePage(ctx context.Context, session Session, artistID string, page int) (ReleasePage, error) {
	const op = "get_release_page"

	var rp ReleasePage
	path := "/artists/" + url.PathEscape(artistID) + "/releases"
	query := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.get(ctx, op, session, path, query, &rp); err != nil {
		return ReleasePage{}, err
	}
	if err := rp.Validate(); err != nil {
		return ReleasePage{}, decodeError(op, err)
	}
	return rp, nil
}

// GetRelease fetches the full credits and tracklist of one release.
func (c *Client) GetRelease(ctx context.Context, session Session, id string) (Release, error) {
	const op = "get_release"

	var release Release
	path := "/releases/" + url.PathEscape(id)
	if err := c.get(ctx, op, session, path, nil, &release); err != nil {
		return Release{}, err
	}
	if err := release.Validate(); err != nil {
		return Release{}, decodeError(op, err)
	}
	return release, nil
}

// Search queries the catalog; kind narrows the entity type ("artist",
// "release") and may be empty.
func (c *Client) Search(ctx context.Context, session Session, term, kind string) ([]SearchResult, error) {
	const op = "search"

	query := url.Values{"q": {term}}
	if kind != "" {
		query.Set("type", kind)
	}
	var out struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.get(ctx, op, session, "/search", query, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) get(ctx context.Context, op string, session Session, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decodeError(op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Session "+session.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	c.archive(ctx, op, path, body)

	if err := json.Unmarshal(body, out); err != nil {
		return decodeError(op, err)
	}
	return nil
}

// archive stores the raw payload when an archiver is configured. Archive
// failures are logged, never surfaced.
func (c *Client) archive(ctx context.Context, op, path string, body []byte) {
	if c.archiver == nil {
		return
	}
	key := fmt.Sprintf("%s%s.json", op, path)
	if _, err := c.archiver.PutObject(ctx, key, "application/json", body); err != nil {
		c.logger.Warn("payload archive failed", zap.String("op", op), zap.Error(err))
	}
}
