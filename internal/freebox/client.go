package freebox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// sessionHeader is the protocol-mandated header carrying the session token.
const sessionHeader = "X-Fbx-App-Auth"

// RawBody carries a pre-encoded request body with its content type, for the
// few appliance endpoints that are not JSON (e.g. form-encoded download adds).
type RawBody struct {
	ContentType string
	Data        []byte
}

const (
	defaultAPIVersion = 8
	defaultTimeout    = 10 * time.Second
)

// versionOverrides pins endpoint families that still speak an older protocol
// revision to their version. Matched on the first path segment.
var versionOverrides = map[string]int{
	"freeplug": 2,
}

// Client is the single chokepoint for appliance HTTP calls. It attaches the
// session token when a call is authenticated, enforces the request timeout and
// normalizes transport and appliance failures into a Result.
//
// The appliance serves a self-signed certificate; the trust exception lives in
// this client's transport only and never touches the process default.
type Client struct {
	logger  zerolog.Logger
	base    string
	http    *http.Client
	timeout time.Duration

	mu           sync.RWMutex
	sessionToken string
}

// NewClient builds a client for the appliance at base, e.g.
// "https://mafreebox.freebox.fr".
func NewClient(logger zerolog.Logger, base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger: logger.With().Str("component", "freebox-client").Logger(),
		base:   strings.TrimRight(base, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		timeout: timeout,
	}
}

// SetSessionToken installs or clears (empty string) the token attached to
// authenticated calls. Only the session manager writes it.
func (c *Client) SetSessionToken(tok string) {
	c.mu.Lock()
	c.sessionToken = tok
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

// HasSession reports whether a session token is currently installed.
func (c *Client) HasSession() bool { return c.currentToken() != "" }

// endpointURL builds <base>/api/v<N>/<endpoint>, honoring per-family version
// overrides.
func (c *Client) endpointURL(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	ver := defaultAPIVersion
	family := endpoint
	if i := strings.IndexByte(endpoint, '/'); i >= 0 {
		family = endpoint[:i]
	}
	if v, ok := versionOverrides[family]; ok {
		ver = v
	}
	return fmt.Sprintf("%s/api/v%d/%s", c.base, ver, endpoint)
}

// Call performs an appliance API call and normalizes the outcome. body may be
// nil; a []byte body is sent verbatim, anything else is JSON-encoded. When
// authenticated is true and no session token is installed, the call fails
// locally without touching the network.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any, authenticated bool) Result {
	token := ""
	if authenticated {
		token = c.currentToken()
		if token == "" {
			return Fail(CodeNotLoggedIn, "no active session")
		}
	}

	start := time.Now()
	res := c.do(ctx, method, c.endpointURL(endpoint), body, token)
	observeCall(endpointFamily(endpoint), res, time.Since(start))
	return res
}

// Discover fetches the unauthenticated discovery document at <base>/api_version.
// Unlike every other endpoint it is not enveloped and not versioned.
func (c *Client) Discover(ctx context.Context) (*VersionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api_version", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery http %d", resp.StatusCode)
	}
	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, url string, body any, token string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case RawBody:
		rd = bytes.NewReader(b.Data)
		contentType = b.ContentType
	case []byte:
		rd = bytes.NewReader(b)
		contentType = "application/json"
	default:
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(b); err != nil {
			return Fail(CodeRequestFailed, "encode request: "+err.Error())
		}
		rd = buf
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return Fail(CodeRequestFailed, err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Fail(CodeRequestFailed, "request canceled")
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fail(CodeRequestFailed, "request timed out")
		}
		return Fail(CodeRequestFailed, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Fail(CodeRequestFailed, "read response: "+err.Error())
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		c.logger.Debug().Str("url", url).Str("content_type", resp.Header.Get("Content-Type")).Msg("non-JSON appliance response")
		return Fail(CodeInvalidResponse, fmt.Sprintf("unexpected content type %q (http %d)", resp.Header.Get("Content-Type"), resp.StatusCode))
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return Fail(CodeInvalidResponse, "malformed appliance response")
	}
	if !out.Success && out.ErrorCode == "" {
		out.ErrorCode = CodeRequestFailed
	}
	return out
}

func endpointFamily(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if i := strings.IndexByte(endpoint, '/'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
