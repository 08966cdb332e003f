// Package timing integrates with the RecLocation API, which computes arrival
// times for a coordinate and posts the report back into the Telegram group.
package timing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrTimingUnavailable = errors.New("timing api not configured")

var coordPattern = regexp.MustCompile(`^-?\d+\.?\d*,-?\d+\.?\d*$`)

type Config struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client requests timing reports. The report itself never comes back on this
// call: RecLocation posts it into the group chat, where the timing detector
// picks it up.
type Client struct {
	baseURL    string
	apiToken   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimSpace(config.BaseURL),
		apiToken:   strings.TrimSpace(config.APIToken),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
}

func (c *Client) Available() bool {
	return c.baseURL != ""
}

// RequestReport asks RecLocation to compute arrival times for one coordinate
// and deliver the report to chatID.
func (c *Client) RequestReport(ctx context.Context, coordinate string, chatID int64) error {
	if !c.Available() {
		return ErrTimingUnavailable
	}
	if !coordPattern.MatchString(coordinate) {
		return fmt.Errorf("invalid coordinate format: %q", coordinate)
	}

	payload, err := json.Marshal(map[string]string{
		"coordinates": coordinate,
		"chatId":      strconv.FormatInt(chatID, 10),
	})
	if err != nil {
		return fmt.Errorf("marshal timing request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create timing request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		httpRequest.Header.Set("X-API-Token", c.apiToken)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("timing transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("read timing response: %w", err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 300 {
			message = message[:300]
		}
		return fmt.Errorf("timing api status %d: %s", httpResponse.StatusCode, message)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode timing response: %w", err)
	}
	if !result.Success {
		c.logf("warn: timing api accepted the request but reported a problem: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// Healthy probes the provider's health endpoint. The bot runs without timing
// when the probe fails, so callers only log the result.
func (c *Client) Healthy(ctx context.Context) bool {
	if !c.Available() {
		return false
	}

	healthURL := strings.Replace(c.baseURL, "/api/timing", "/health", 1)
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		c.logf("warn: timing api health probe failed: %v", err)
		return false
	}
	defer httpResponse.Body.Close()
	_, _ = io.Copy(io.Discard, httpResponse.Body)

	return httpResponse.StatusCode == http.StatusOK
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
