// Package infobipclient is a thin REST client for Infobip's WhatsApp template API.
package infobipclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	templatePath     = "/whatsapp/1/message/template"
	defaultUserAgent = "missedcall-flow/0.1"
	maxErrorBody     = 8192
)

// Config controls how the Infobip client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the Infobip endpoints the dispatcher needs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("infobipclient: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("infobipclient: base URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// SendTemplate submits a single WhatsApp template message. Any non-2xx
// response is returned as *APIError.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) (*SendResult, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(buildTemplateRequest(msg))
	if err != nil {
		return nil, fmt.Errorf("infobipclient: marshal template body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, templatePath, body)
	if err != nil {
		return nil, err
	}
	var parsed sendResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("infobipclient: decode response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return &SendResult{BulkID: parsed.BulkID, To: msg.To}, nil
	}
	result := parsed.Messages[0]
	result.BulkID = parsed.BulkID
	return &result, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("infobipclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "App "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("infobipclient: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("infobipclient: read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	apiErr := decodeAPIError(resp.StatusCode, data)
	c.logger.Warn("infobip request rejected",
		"path", path,
		"status", resp.StatusCode,
		"error", apiErr,
	)
	return nil, apiErr
}

// APIError is a non-2xx response from Infobip.
type APIError struct {
	StatusCode int
	Body       string
	MessageID  string
	Text       string
}

func (e *APIError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("infobipclient: %s (status=%d)", e.Text, e.StatusCode)
	}
	return fmt.Sprintf("infobipclient: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) *APIError {
	trimmed := body
	if len(trimmed) > maxErrorBody {
		trimmed = trimmed[:maxErrorBody]
	}
	apiErr := &APIError{StatusCode: status, Body: string(trimmed)}
	var parsed struct {
		RequestError struct {
			ServiceException struct {
				MessageID string `json:"messageId"`
				Text      string `json:"text"`
			} `json:"serviceException"`
		} `json:"requestError"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.MessageID = parsed.RequestError.ServiceException.MessageID
		apiErr.Text = parsed.RequestError.ServiceException.Text
	}
	return apiErr
}
