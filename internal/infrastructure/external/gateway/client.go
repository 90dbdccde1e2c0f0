// Package gateway sends reminders through an SMS/WhatsApp HTTP gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// ErrNoPhone is returned when the contact has no phone number
var ErrNoPhone = errors.New("contact has no phone number")

// Config holds gateway settings
type Config struct {
	URL     string
	Token   string
	Channel string // "sms" or "whatsapp"
	Timeout time.Duration

	// Breaker trips after this many consecutive failures; 0 means 3
	MaxFailures  uint32
	BreakerReset time.Duration
}

// Enabled reports whether a gateway URL is configured
func (c Config) Enabled() bool {
	return c.URL != ""
}

// StatusError is a non-2xx gateway response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// clientError reports a rejection that retrying will not fix
func clientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

type sendRequest struct {
	To        string `json:"to"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Client posts reminders to the gateway behind a circuit breaker
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Channel == "" {
		cfg.Channel = "sms"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	reset := cfg.BreakerReset
	if reset <= 0 {
		reset = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reminder-gateway",
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// CanReach reports whether the contact has a phone number
func (c *Client) CanReach(contact entity.ClientContact) bool {
	return strings.TrimSpace(contact.Phone) != ""
}

// Send implements port.ReminderSender
func (c *Client) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	phone := strings.TrimSpace(msg.Contact.Phone)
	if phone == "" {
		return nil, ErrNoPhone
	}

	payload := sendRequest{
		To:        phone,
		Channel:   c.cfg.Channel,
		Message:   msg.Text(),
		Reference: fmt.Sprintf("task-%d/%s", msg.TaskID, entity.SlotKey(msg.Tag, msg.DocumentType)),
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		c.logger.Error("Failed to send reminder via gateway",
			zap.Int64("task_id", msg.TaskID),
			zap.String("channel", c.cfg.Channel),
			zap.Error(err))
		return nil, fmt.Errorf("gateway send failed: %w", err)
	}

	resp := result.(*sendResponse)
	c.logger.Info("Reminder sent via gateway",
		zap.Int64("task_id", msg.TaskID),
		zap.String("message_id", resp.ID))

	return &port.DeliveryReceipt{
		Channel:   entity.ChannelGateway,
		Recipient: phone,
		MessageID: resp.ID,
	}, nil
}

func (c *Client) post(ctx context.Context, payload sendRequest) (*sendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return &out, nil
}

// Verify interface compliance
var _ port.ReminderSender = (*Client)(nil)
