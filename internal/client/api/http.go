package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
)

// HTTPClient talks JSON over HTTP with bearer-token auth. Transport failures
// and gateway errors are retried with Fibonacci backoff; every request in
// this API is idempotent, push included, so retrying is always safe.
type HTTPClient struct {
	base string
	http *http.Client
	log  logging.Logger
}

func NewHTTPClient(base string, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/users/register", "",
		models.Credentials{Username: username, Password: password}, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp models.TokenResponse
	err := c.do(ctx, http.MethodPost, "/users/login", "",
		models.Credentials{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *HTTPClient) Pull(ctx context.Context, token string, lastPulledAtMs int64) (*models.PullResponse, error) {
	var resp models.PullResponse
	err := c.do(ctx, http.MethodPost, "/sync/pull", token,
		models.PullRequest{LastPulledAt: models.Millis(lastPulledAtMs)}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Push(ctx context.Context, token string, ch *models.Changes) (*models.PushResponse, error) {
	var resp models.PushResponse
	err := c.do(ctx, http.MethodPost, "/sync/push", token, models.PushRequest{Changes: *ch}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetKey(ctx context.Context, token string) (*models.KeyPayload, error) {
	var resp models.KeyPayload
	if err := c.do(ctx, http.MethodGet, "/users/key", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PutKey(ctx context.Context, token string, payload *models.KeyPayload) error {
	return c.do(ctx, http.MethodPost, "/users/key", token, payload, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", "", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Debug(ctx, "request failed, will retry", "path", path, "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrNetwork, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrNetwork, err))
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if out == nil {
				return nil
			}
			return json.Unmarshal(data, out)
		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			return retry.RetryableError(fmt.Errorf("%w: server returned %d", common.ErrNetwork, resp.StatusCode))
		default:
			return statusError(resp.StatusCode, data)
		}
	})
}

// statusError maps a non-OK response to the shared sentinel errors, keeping
// the server's message when it sent one.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var eb struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", common.ErrAlreadyExists, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrValidation, msg)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", common.ErrInternal, status, msg)
	}
}
