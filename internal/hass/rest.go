// SPDX-License-Identifier: MPL-2.0

package hass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// stopServicePath invokes the homeassistant.stop service.
	stopServicePath = "/api/services/homeassistant/stop"
	// alivePath is a cheap authenticated liveness probe.
	alivePath = "/api/"

	// defaultStopPoll is the interval between liveness probes in WaitForStop.
	defaultStopPoll = 2 * time.Second
)

type (
	// RESTClient calls the small slice of the Home Assistant REST API the
	// migration workflow needs: stopping the instance and probing liveness.
	RESTClient struct {
		httpClient *http.Client
		baseURL    string
		token      string
		logger     *log.Logger
		stopPoll   time.Duration
	}

	// RESTOption configures a RESTClient during construction.
	RESTOption func(*RESTClient)
)

// WithHTTPClient sets a custom HTTP client, useful for tests.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) {
		r.httpClient = c
	}
}

// WithRESTLogger sets the logger for request debug output.
func WithRESTLogger(l *log.Logger) RESTOption {
	return func(r *RESTClient) {
		r.logger = l
	}
}

// WithStopPoll overrides the liveness polling interval (tests).
func WithStopPoll(d time.Duration) RESTOption {
	return func(r *RESTClient) {
		r.stopPoll = d
	}
}

// NewRESTClient creates a client for the given base URL and access token.
func NewRESTClient(server, token string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(server, "/"),
		token:      token,
		logger:     log.Default(),
		stopPoll:   defaultStopPoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stop asks Home Assistant to shut down via the homeassistant.stop service.
// A refused connection is treated as success: it means the instance is
// already stopping (or stopped) and cannot answer.
func (c *RESTClient) Stop(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+stopServicePath, strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("creating stop request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			c.logger.Debug("stop: connection refused, instance already stopping")
			return nil
		}
		return fmt.Errorf("stopping Home Assistant: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stopping Home Assistant: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Alive reports whether the REST API answers at all. Any HTTP response,
// including 401, counts as alive; only transport failures count as down.
func (c *RESTClient) Alive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+alivePath, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// WaitForStop polls until the API stops answering or ctx expires.
func (c *RESTClient) WaitForStop(ctx context.Context) error {
	ticker := time.NewTicker(c.stopPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for Home Assistant to stop: %w", ctx.Err())
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, c.stopPoll)
			alive := c.Alive(probeCtx)
			cancel()
			if !alive {
				c.logger.Debug("instance stopped answering")
				return nil
			}
			c.logger.Debug("instance still answering")
		}
	}
}

// isConnectionRefused reports whether err stems from a refused TCP connection.
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
