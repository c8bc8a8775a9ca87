/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package driver is the client for the Lodestone query service. It
// prepares and executes statements, running the driver-side portion of
// advanced query plans through the engine package.
package driver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/ld/log"
	"lodestone.io/lodestone/go/wire"
)

// SerialVersion is the envelope serial version this client speaks.
const SerialVersion int16 = 4

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 10
	retryDelay     = 30 * time.Millisecond
)

// AuthorizationProvider decorates outgoing requests with whatever
// authorization the deployment needs.
type AuthorizationProvider interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// Connection is the transport a query request executes over. Client is
// the production implementation; tests substitute their own.
type Connection interface {
	// Roundtrip posts one serialized request and returns the raw
	// response envelope. Retryable failures are handled inside.
	Roundtrip(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error)

	// DefaultTimeout is used for requests that carry no timeout of
	// their own.
	DefaultTimeout() time.Duration
}

// Config configures a Client.
type Config struct {
	// Endpoint is the service host, with or without a scheme.
	Endpoint string
	// Timeout is the default per-request timeout. Zero means 30s.
	Timeout time.Duration
	// Auth is optional; when nil requests go out unauthorized.
	Auth AuthorizationProvider
	// HTTPClient overrides the transport. When nil a client with the
	// configured timeout is used.
	HTTPClient *http.Client
	// UserAgent overrides the default user agent.
	UserAgent string
}

// Client is the HTTP connection to the query service. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	auth       AuthorizationProvider
	userAgent  string
}

// NewClient validates the config and builds a connection. No network
// traffic happens until the first request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, lderrors.New(lderrors.IllegalArgument, "no endpoint configured")
	}
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/") + "/V2/data"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "lodestone-go-driver"
	}
	log.Infof("new lodestone client, endpoint %s", endpoint)
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		timeout:    timeout,
		auth:       cfg.Auth,
		userAgent:  userAgent,
	}, nil
}

func (c *Client) DefaultTimeout() time.Duration { return c.timeout }

// Roundtrip posts the payload and returns the response envelope,
// retrying transparently on retryable service errors. Decoding errors
// and non-retryable service errors propagate to the caller.
func (c *Client) Roundtrip(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}
		data, err := c.post(ctx, payload, timeout)
		if err != nil {
			return nil, err
		}
		if err := checkResponse(data); err != nil {
			if lderrors.IsRetryable(err) {
				log.V(2).Infof("retrying request: %v", err)
				lastErr = err
				continue
			}
			return nil, err
		}
		return data, nil
	}
	return nil, lderrors.Wrapf(lastErr, "request failed after %d retries", maxRetries)
}

func (c *Client) post(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, lderrors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("x-request-id", uuid.NewString())
	if c.auth != nil {
		if err := c.auth.Authorize(ctx, req); err != nil {
			return nil, lderrors.Wrap(err, "authorizing request")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lderrors.Wrap(err, "posting request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, lderrors.Errorf(lderrors.ServerError,
			"unexpected http status %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lderrors.Wrap(err, "reading response")
	}
	return data, nil
}

// checkResponse walks the envelope once looking for a nonzero error
// code, leaving the payload untouched for the real deserializer.
func checkResponse(data []byte) error {
	mw, err := wire.NewMapWalker(wire.NewReader(data))
	if err != nil {
		return err
	}
	for mw.HasNext() {
		if err := mw.Next(); err != nil {
			return err
		}
		if mw.Name() == wire.FieldErrorCode {
			return mw.HandleErrorCode()
		}
		if err := mw.SkipField(); err != nil {
			return err
		}
	}
	return nil
}

var _ Connection = (*Client)(nil)
