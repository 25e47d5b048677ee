// Package whatsapp implements the Messenger contract against a WhatsApp
// HTTP gateway sidecar. The gateway owns the actual chat session; this
// client only sends text, fetches the pairing QR code and tracks
// connection state.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dentalert/dentalert-api/internal/messenger"
	"github.com/dentalert/dentalert-api/pkg/circuitbreaker"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/metrics"
)

type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	PollInterval time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	state   *messenger.ConnState
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, logger *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		state: messenger.NewConnState(),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "whatsapp-gateway",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  logger,
		metrics: m,
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Results struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

func (c *Client) Send(ctx context.Context, phone, text string) (*messenger.Receipt, error) {
	body, err := json.Marshal(sendRequest{Phone: phone, Message: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	var resp sendResponse
	start := time.Now()
	err = c.cb.Execute(func() error {
		return c.post(ctx, "/send/message", body, &resp)
	})
	c.metrics.GatewayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.GatewayOperations.WithLabelValues("send", "error").Inc()
		return nil, err
	}
	c.metrics.GatewayOperations.WithLabelValues("send", "success").Inc()

	return &messenger.Receipt{
		ID:        resp.Results.MessageID,
		Accepted:  resp.Results.Status == "sent",
		Timestamp: time.Now(),
	}, nil
}

func (c *Client) ConnectionStatus() messenger.Status {
	return messenger.Status{
		Connected: c.state.Connected(),
		State:     c.state.Current(),
	}
}

// QRCode fetches the pairing QR image from the gateway for display in the
// admin UI while the session is awaiting a scan.
func (c *Client) QRCode(ctx context.Context) ([]byte, error) {
	var loginResp struct {
		Results struct {
			QRLink string `json:"qr_link"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/app/login", &loginResp); err != nil {
		return nil, fmt.Errorf("failed to request QR code: %w", err)
	}

	c.state.Apply(messenger.EventQRGenerated)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginResp.Results.QRLink, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch QR image: %w", err)
	}
	defer res.Body.Close()

	return io.ReadAll(res.Body)
}

// StartStatusPolling drives the connection state machine from the
// gateway's device list until ctx is cancelled.
func (c *Client) StartStatusPolling(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.refreshStatus(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshStatus(ctx)
		}
	}
}

func (c *Client) refreshStatus(ctx context.Context) {
	var resp struct {
		Results []struct {
			Name   string `json:"name"`
			Device string `json:"device"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/app/devices", &resp); err != nil {
		c.metrics.GatewayOperations.WithLabelValues("status", "error").Inc()
		state := c.state.Apply(messenger.EventDisconnected)
		c.logger.Warn("gateway status check failed", "error", err.Error(), "state", string(state))
		return
	}
	c.metrics.GatewayOperations.WithLabelValues("status", "success").Inc()

	if len(resp.Results) > 0 {
		c.state.Apply(messenger.EventAuthenticated)
	} else {
		c.state.Apply(messenger.EventDisconnected)
	}
}

func (c *Client) post(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(res.Body)
		return fmt.Errorf("gateway returned %d: %s", res.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
