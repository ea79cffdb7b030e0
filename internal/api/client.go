package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qms/booking-client/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the booking API on behalf of one signed-in session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

func New(opts Options) *Client {
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(loggingTransport{next: next}),
		},
	}
}

func (c *Client) FetchNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []models.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", query, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (c *Client) GetBusiness(ctx context.Context, businessID string) (models.Business, error) {
	var out models.Business
	if err := c.do(ctx, http.MethodGet, "/api/businesses/"+url.PathEscape(businessID), nil, nil, &out); err != nil {
		return models.Business{}, fmt.Errorf("get business %s: %w", businessID, err)
	}
	return out, nil
}

// QueueByBusiness returns nil without error when the business has no queue.
func (c *Client) QueueByBusiness(ctx context.Context, businessID string) (*models.Queue, error) {
	var out models.Queue
	err := c.do(ctx, http.MethodGet, "/api/queues/business/"+url.PathEscape(businessID), nil, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue for business %s: %w", businessID, err)
	}
	return &out, nil
}

func (c *Client) BookingLimit(ctx context.Context, businessID string) (models.BookingLimit, error) {
	query := url.Values{"businessId": {businessID}}
	var out models.BookingLimit
	if err := c.do(ctx, http.MethodGet, "/api/subscriptions/booking-limit", query, nil, &out); err != nil {
		return models.BookingLimit{}, fmt.Errorf("booking limit for business %s: %w", businessID, err)
	}
	return out, nil
}

func (c *Client) ListMyTickets(ctx context.Context) ([]models.Ticket, error) {
	var out []models.Ticket
	if err := c.do(ctx, http.MethodGet, "/api/tickets/mine", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

func (c *Client) CreateTicket(ctx context.Context, req models.CreateTicketRequest) (models.Ticket, error) {
	var out models.Ticket
	if err := c.do(ctx, http.MethodPost, "/api/tickets", nil, req, &out); err != nil {
		return models.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return out, nil
}

// TicketAction posts one of cancel, call, start or serve for a ticket.
func (c *Client) TicketAction(ctx context.Context, ticketID, action string) (models.Ticket, error) {
	switch action {
	case "cancel", "call", "start", "serve":
	default:
		return models.Ticket{}, fmt.Errorf("ticket action %q not supported", action)
	}
	var out models.Ticket
	path := "/api/tickets/" + url.PathEscape(ticketID) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return models.Ticket{}, fmt.Errorf("%s ticket %s: %w", action, ticketID, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
		if payload.RequestID != "" {
			apiErr.RequestID = payload.RequestID
		}
	}
	return apiErr
}
