// Package bridge talks to the external authoring tool's local HTTP endpoint.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/logger"
)

// Errors returned by the client.
var (
	ErrNotFound = errors.New("not found")
	ErrNetwork  = errors.New("authoring tool request failed")
)

// maxBody bounds response bodies.
const maxBody = 256 << 20

// Status is the answer to an animation status check.
type Status struct {
	Name    string `json:"name"`
	Hash    string `json:"hash"`
	Changed bool   `json:"changed"`
}

// Client makes requests to the authoring tool. Every call is bounded by the
// client timeout in addition to the caller's context.
type Client struct {
	host    string
	timeout time.Duration
	http    *http.Client
}

// New creates a client for the tool running on host.
func New(host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		host:    host,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// url builds a request URL. rawPath is already escaped segment by segment.
func (c *Client) url(port int, rawPath string, query url.Values) string {
	u := url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("%s:%d", c.host, port),
		Path:     rawPath,
		RawQuery: query.Encode(),
	}
	if p, err := url.PathUnescape(rawPath); err == nil {
		u.Path, u.RawPath = p, rawPath
	}
	return u.String()
}

// ListArmatures returns the names of the armatures open in the tool.
func (c *Client) ListArmatures(ctx context.Context, port int) ([]string, error) {
	var resp struct {
		Armatures []string `json:"armatures"`
	}
	if err := c.getJSON(ctx, c.url(port, "/armatures", nil), &resp); err != nil {
		return nil, err
	}
	return resp.Armatures, nil
}

// ImportAnimation fetches the transported payload for the named armature.
// The bytes are returned as received; decoding is the caller's concern.
func (c *Client) ImportAnimation(ctx context.Context, port int, name string) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, c.url(port, "/animations/"+url.PathEscape(name), nil), nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	return data, nil
}

// ExportAnimation sends a transported payload to the tool. With an empty name
// the tool picks one. It returns the name the payload was stored under.
func (c *Client) ExportAnimation(ctx context.Context, port int, payload []byte, name string) (string, error) {
	method, target := http.MethodPost, c.url(port, "/animations", nil)
	if name != "" {
		method, target = http.MethodPut, c.url(port, "/animations/"+url.PathEscape(name), nil)
	}
	body, err := c.do(ctx, method, target, payload)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var st Status
	if err := json.NewDecoder(body).Decode(&st); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrNetwork, err)
	}
	logger.Debug("animation exported", zap.String("name", st.Name), zap.Int("bytes", len(payload)))
	return st.Name, nil
}

// CheckAnimationStatus asks whether the named animation changed since the
// payload with lastHash was seen.
func (c *Client) CheckAnimationStatus(ctx context.Context, port int, name, lastHash string) (Status, error) {
	var st Status
	q := url.Values{"hash": []string{lastHash}}
	err := c.getJSON(ctx, c.url(port, "/animations/"+url.PathEscape(name)+"/status", q), &st)
	return st, err
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	body, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrNetwork, err)
	}
	return nil
}

// do sends one request. The returned body must be closed; it stays readable
// until then even though the timeout context is released on close.
func (c *Client) do(ctx context.Context, method, target string, payload []byte) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		cancel()
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
