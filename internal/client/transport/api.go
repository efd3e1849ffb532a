package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// API is the request/response half of the transport: a JSON-over-HTTP client
// for the server's REST surface. It owns the token pair and the
// refresh-then-retry-once policy: a 401 triggers one token refresh and one
// retry; a second 401 surfaces as common.ErrAuthExpired.
type API struct {
	baseURL    string
	deviceID   string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	sessionID    string
}

// NewAPI builds an API client for the server at baseURL. httpClient may be
// nil, in which case http.DefaultClient is used.
func NewAPI(baseURL, deviceID string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   deviceID,
		httpClient: httpClient,
	}
}

// TokenPair is the credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SetTokens installs a credential pair, e.g. after an out-of-band login.
func (a *API) SetTokens(access, refresh string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = access
	a.refreshToken = refresh
}

// AccessToken returns the current access token, empty when unauthenticated.
func (a *API) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken
}

// SetSessionID installs the real-time session id from the handshake hello.
// Subsequent writes carry it so the server can exclude this session from its
// own fan-out.
func (a *API) SetSessionID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = id
}

// SessionID returns the current session id, empty before the first handshake.
func (a *API) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Register creates an account.
func (a *API) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return a.doJSON(ctx, http.MethodPost, "/api/register", body, nil, false)
}

// Login authenticates and installs the returned token pair.
func (a *API) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var pair TokenPair
	if err := a.doJSON(ctx, http.MethodPost, "/api/login", body, &pair, false); err != nil {
		return err
	}
	a.SetTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

// refresh rotates the token pair. Returns common.ErrAuthExpired when the
// refresh token itself is rejected.
func (a *API) refresh(ctx context.Context) error {
	a.mu.Lock()
	rt := a.refreshToken
	a.mu.Unlock()
	if rt == "" {
		return common.ErrAuthExpired
	}

	var pair TokenPair
	err := a.doJSON(ctx, http.MethodPost, "/api/refresh", map[string]string{"refreshToken": rt}, &pair, false)
	if err != nil {
		return common.ErrAuthExpired
	}
	a.SetTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

// SaveResult is the persist confirmation. Clip always echoes the submitted
// LocalID; UploadURL is set when the content was oversized and must be PUT
// to object storage by the client.
type SaveResult struct {
	Clip      model.Clip `json:"clip"`
	UploadURL string     `json:"uploadUrl,omitempty"`
}

// CreateClip persists a clip. Idempotent on the clip's LocalID: resubmitting
// returns the already-persisted clip.
func (a *API) CreateClip(ctx context.Context, clip *model.Clip) (*SaveResult, error) {
	var res SaveResult
	if err := a.doJSON(ctx, http.MethodPost, "/clips", clip, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListOptions filter a clip listing.
type ListOptions struct {
	Limit  int
	Pinned *bool
	Search string
	Type   string
}

// ListClips fetches clips for the authenticated user. This is the
// reconciliation source of truth after a reconnect.
func (a *API) ListClips(ctx context.Context, opts ListOptions) ([]*model.Clip, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Pinned != nil {
		q.Set("pinned", strconv.FormatBool(*opts.Pinned))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}

	path := "/clips"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var out struct {
		Clips []*model.Clip `json:"clips"`
	}
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Clips, nil
}

// SetPinned patches the pinned flag.
func (a *API) SetPinned(ctx context.Context, clipID string, pinned bool) error {
	body := map[string]bool{"pinned": pinned}
	return a.doJSON(ctx, http.MethodPost, "/clips/"+url.PathEscape(clipID)+"/set-pinned", body, nil, true)
}

// SetPassword protects a clip with a password.
func (a *API) SetPassword(ctx context.Context, clipID, password string) error {
	body := map[string]string{"password": password}
	return a.doJSON(ctx, http.MethodPost, "/clips/"+url.PathEscape(clipID)+"/set-password", body, nil, true)
}

// Unlock returns the clip content if password matches.
func (a *API) Unlock(ctx context.Context, clipID, password string) (string, error) {
	body := map[string]string{"password": password}
	var out struct {
		Content string `json:"content"`
	}
	err := a.doJSON(ctx, http.MethodPost, "/clips/"+url.PathEscape(clipID)+"/unlock", body, &out, true)
	return out.Content, err
}

// RemovePassword lifts a clip's password protection.
func (a *API) RemovePassword(ctx context.Context, clipID, password string) error {
	body := map[string]string{"password": password}
	return a.doJSON(ctx, http.MethodPost, "/clips/"+url.PathEscape(clipID)+"/remove-password", body, nil, true)
}

// DeleteClip removes a clip.
func (a *API) DeleteClip(ctx context.Context, clipID string) error {
	return a.doJSON(ctx, http.MethodDelete, "/clips/"+url.PathEscape(clipID), nil, nil, true)
}

// ContentURL fetches a presigned GET URL for a clip whose content was
// offloaded to object storage.
func (a *API) ContentURL(ctx context.Context, clipID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := a.doJSON(ctx, http.MethodGet, "/clips/"+url.PathEscape(clipID)+"/content-url", nil, &out, true)
	return out.URL, err
}

// WebsocketURL derives the real-time channel endpoint from the base URL.
func (a *API) WebsocketURL() string {
	u := a.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func (a *API) doJSON(ctx context.Context, method, path string, body, out any, authed bool) error {
	resp, err := a.doOnce(ctx, method, path, body, authed)
	if err != nil {
		return err
	}

	// One refresh-then-retry on an expired access token; a second 401 is an
	// auth failure for the caller, not retried further.
	if authed && resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := a.refresh(ctx); err != nil {
			return err
		}
		resp, err = a.doOnce(ctx, method, path, body, authed)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return common.ErrAuthExpired
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", common.ErrOwnershipRejected, strings.TrimSpace(string(b)))
		case http.StatusNotFound:
			return common.ErrNotFound
		case http.StatusUnauthorized:
			return common.ErrUnauthorized
		default:
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) doOnce(ctx context.Context, method, path string, body any, authed bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.DeviceIDHeaderName, a.deviceID)
	if authed {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+a.AccessToken())
		if sid := a.SessionID(); sid != "" {
			req.Header.Set(common.SessionIDHeaderName, sid)
		}
	}

	return a.httpClient.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
