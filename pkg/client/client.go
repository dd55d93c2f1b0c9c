package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"support-backend/pkg/api"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	requestTimeout = 60 * time.Second
)

// APIError is returned for any non 2xx response from the chat api.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "support-backend-client"),
	}
}

func decodeError(res *resty.Response, fallback string) error {
	var body api.Response[any]
	if err := json.Unmarshal(res.Body(), &body); err != nil || body.Error == nil || body.Error.Message == "" {
		return &APIError{Status: res.StatusCode(), Message: fallback}
	}
	return &APIError{Status: res.StatusCode(), Message: body.Error.Message, Details: body.Error.Details}
}

func (c *Client) SendMessage(ctx context.Context, req api.SendMessageRequest) (api.SendMessageResponse, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/message")
	if err != nil {
		slog.Error("error sending message", "error", err)
		return api.SendMessageResponse{}, fmt.Errorf("error sending message: %w", err)
	}

	if !res.IsSuccess() {
		return api.SendMessageResponse{}, decodeError(res, "Failed to send message")
	}

	var body api.Response[api.SendMessageResponse]
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return api.SendMessageResponse{}, fmt.Errorf("error parsing send message response: %w", err)
	}
	return body.Data, nil
}

// GetHistory returns every message of the session when limit <= 0.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) (api.HistoryResponse, error) {
	req := c.client.R().SetContext(ctx)
	if limit > 0 {
		req = req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	res, err := req.Get("/chat/history/" + url.PathEscape(sessionID))
	if err != nil {
		slog.Error("error fetching history", "error", err)
		return api.HistoryResponse{}, fmt.Errorf("error fetching history: %w", err)
	}

	if !res.IsSuccess() {
		return api.HistoryResponse{}, decodeError(res, "Failed to fetch history")
	}

	var body api.Response[api.HistoryResponse]
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return api.HistoryResponse{}, fmt.Errorf("error parsing history response: %w", err)
	}
	return body.Data, nil
}

// CheckHealth reports whether the api answered its health check.
func (c *Client) CheckHealth(ctx context.Context) bool {
	res, err := c.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		slog.Debug("health check failed", "error", err)
		return false
	}
	return res.IsSuccess()
}
