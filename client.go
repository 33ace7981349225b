package sdyn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sdyn/go-sdyn/internal/metrics"
)

const apiRoot = "/api/v1"

// TokenSource supplies bearer tokens for API requests.
//
// Refresh is called at most once per request, after the backend rejected the
// current token. Implementations that cannot refresh return an error wrapping
// ErrNoRefresh; either way they are expected to have cleared their stored
// credentials before returning an error.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type Option func(c *Client) error

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return errors.New("nil http client")
		}
		c.hc = client
		return nil
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.logger = logger.Named("api")
		return nil
	}
}

// WithTokenSource binds the client to one session's credentials.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) error {
		c.tokens = ts
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		hc := *c.hc
		hc.Timeout = d
		c.hc = &hc
		return nil
	}
}

type Client struct {
	hc     *http.Client
	logger *zap.SugaredLogger
	url    url.URL
	tokens TokenSource
}

func Open(serviceURL url.URL, opts ...Option) (*Client, error) {
	c := Client{
		hc:     http.DefaultClient,
		logger: zap.NewNop().Sugar(),
		url:    serviceURL,
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (c *Client) WithOpts(opts ...Option) (*Client, error) {
	newC := *c
	for _, opt := range opts {
		if err := opt(&newC); err != nil {
			return nil, err
		}
	}
	return &newC, nil
}

func (c *Client) doGET(ctx context.Context, path string, params url.Values, output interface{}) error {
	_, err := c.do(ctx, http.MethodGet, path, params, nil, output)
	return err
}

func (c *Client) doJSON(ctx context.Context, method string, path string, input, output interface{}) error {
	_, err := c.do(ctx, method, path, nil, input, output)
	return err
}

// do sends one API request. A 401 answer triggers exactly one token refresh
// followed by exactly one retry; nothing else is retried.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	input interface{},
	output interface{}) (*http.Response, error) {
	var body []byte
	if input != nil {
		b, err := json.Marshal(input)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s %s body", method, path)
		}
		body = b
	}

	var token string
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "get access token")
		}
		token = t
	}

	req, resp, startTime, err := c.send(ctx, method, path, params, body, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		discard(resp)
		c.logger.Infow("Access token rejected, refreshing", "url", req.URL.String())

		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, errors.Wrapf(ErrSessionExpired, "refresh after 401 from %s %s: %v", method, path, err)
		}

		req, resp, startTime, err = c.send(ctx, method, path, params, body, token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			discard(resp)
			c.logger.Warnw("Access token rejected after refresh", "url", req.URL.String())
			return nil, errors.Wrapf(ErrSessionExpired, "%s %s still unauthorized after refresh", method, path)
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := c.checkResponse(req, resp, startTime); err != nil {
		return resp, err
	}
	if err := decodeResponse(resp, output); err != nil {
		return resp, errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return resp, nil
}

func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body []byte,
	token string) (*http.Request, *http.Response, time.Time, error) {
	req, err := c.newRequest(ctx, method, path, params, body, token)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	startTime := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(method, routeLabel(path), 0, time.Since(startTime))
		return req, nil, startTime, errors.Wrapf(err, "%s request to %s failed", method, req.URL)
	}
	// Every answer counts, including a 401 that is retried after a refresh.
	metrics.ObserveAPIRequest(method, routeLabel(path), resp.StatusCode, time.Since(startTime))
	return req, resp, startTime, nil
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body []byte,
	token string) (*http.Request, error) {
	url := c.formatURL(path, params)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) formatURL(path string, params url.Values) string {
	u := c.url
	// path segments arrive escaped; keep them that way on the wire.
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + apiRoot + path
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) checkResponse(
	req *http.Request,
	resp *http.Response,
	startTime time.Time) error {
	elapsed := time.Since(startTime)
	c.logger.Infow(req.Method,
		"url", req.URL.String(),
		"time", elapsed.Seconds(),
		"status", resp.StatusCode)
	return errorFromResponse(req, resp)
}

// routeLabel keeps metric cardinality bounded by reporting only the resource.
func routeLabel(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
