// Package zentaoapi provides a hand-written client for the ZenTao RESTful
// API (api.php/v1). ZenTao publishes no OpenAPI document and several response
// fields are shape-polymorphic, so requests and decoding are done by hand.
package zentaoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

const tokenPath = "/api.php/v1/tokens"

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client is the session against one ZenTao instance: one account, one lazily
// fetched token, reused for the process lifetime. There is no refresh logic;
// a token the upstream silently invalidates produces upstream-reported errors
// on the next call.
type Client struct {
	baseURL  string
	account  string
	password string
	http     *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a session for the given instance. Trailing slashes on
// baseURL are stripped so path joining stays predictable.
func NewClient(baseURL, account, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		account:  account,
		password: password,
		http:     httpClient,
	}
}

// Account returns the session's own login, used as the default identity for
// "my bugs" queries.
func (c *Client) Account() string {
	return c.account
}

// EnsureToken performs the credential exchange on first use and caches the
// token. Idempotent: later calls are no-ops. Concurrent first callers are
// serialized; both observe the same token.
func (c *Client) EnsureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}
	token, err := c.exchangeToken(ctx)
	if err != nil {
		return err
	}
	c.token = token
	return nil
}

func (c *Client) exchangeToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"account":  c.account,
		"password": c.password,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read token response")
	}

	var decoded struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &AuthError{Reason: "token response parse failed: " + snippet(body)}
	}
	if decoded.Error != "" {
		return "", &AuthError{Reason: decoded.Error}
	}
	if decoded.Token == "" {
		return "", &AuthError{Reason: "token missing in response: " + snippet(body)}
	}
	return decoded.Token, nil
}

// Request sends one authenticated call and returns the decoded JSON body as
// raw bytes. The body, when non-nil, is sent as JSON. A non-JSON response is
// a ParseError regardless of HTTP status.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if err := c.EnsureToken(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.mu.Lock()
	req.Header.Set("Token", c.token)
	c.mu.Unlock()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if !json.Valid(raw) {
		return nil, &ParseError{Snippet: snippet(raw)}
	}
	return json.RawMessage(raw), nil
}

// pageQuery builds the standard pagination query.
func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// ListProducts returns the upstream product listing wrapped in the tool
// envelope: the full payload passes through, with an upstream error field
// downgrading the envelope to status 0.
func (c *Client) ListProducts(ctx context.Context, page, limit int) (*Result, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultProductsLimit
	}
	raw, err := c.Request(ctx, http.MethodGet, "/api.php/v1/products", pageQuery(page, limit), nil)
	if err != nil {
		return nil, err
	}
	return envelope(raw)
}

// ListBugs returns one page of bugs for a product, wrapped in the tool
// envelope. The product id is required and checked before any network call.
func (c *Client) ListBugs(ctx context.Context, product, page, limit int) (*Result, error) {
	if product <= 0 {
		return nil, &ValidationError{Param: "product"}
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultBugsLimit
	}
	q := pageQuery(page, limit)
	q.Set("product", strconv.Itoa(product))
	raw, err := c.Request(ctx, http.MethodGet, "/api.php/v1/bugs", q, nil)
	if err != nil {
		return nil, err
	}
	return envelope(raw)
}

// envelope wraps a raw upstream payload: explicit error field -> status 0,
// otherwise status 1 passthrough.
func envelope(raw json.RawMessage) (*Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ParseError{Snippet: snippet(raw)}
	}
	if msg, ok := payload["error"].(string); ok && msg != "" {
		return UpstreamFailure(msg, payload), nil
	}
	return Success(payload), nil
}

// fetchBugPage returns one typed page of a product's bug listing. An
// upstream error field aborts rather than returning a partial page.
func (c *Client) fetchBugPage(ctx context.Context, product, page, limit int) (*bugsPage, error) {
	q := pageQuery(page, limit)
	q.Set("product", strconv.Itoa(product))
	raw, err := c.Request(ctx, http.MethodGet, "/api.php/v1/bugs", q, nil)
	if err != nil {
		return nil, err
	}
	var decoded bugsPage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ParseError{Snippet: snippet(raw)}
	}
	if decoded.Error != "" {
		return nil, &UpstreamError{Msg: decoded.Error}
	}
	return &decoded, nil
}
