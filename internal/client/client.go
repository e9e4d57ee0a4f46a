package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avetisk/event-ticketing/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	// maxRetries bounds automatic retries of idempotent requests after
	// a network failure.
	maxRetries = 2
)

// Client talks to the ticketing API with a bearer token and keeps the
// caller's reservations in a local Store.  Mutating calls update the
// store only after the server confirms, so a failed call never leaves
// it partially changed.
type Client struct {
	baseURL string
	http    *http.Client
	storage Storage

	session      *Session
	Reservations *Store
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, mainly for
// tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithStorage sets where session state is persisted between runs.
func WithStorage(st Storage) Option {
	return func(c *Client) { c.storage = st }
}

// New returns a Client for the API at baseURL.  A session persisted in
// the configured storage is restored automatically.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: defaultTimeout},
		Reservations: NewStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = restoreSession(c.storage)
	return c
}

// Session returns the current session, or nil when logged out.
func (c *Client) Session() *Session { return c.session }

// ----- auth -----

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User   *model.User `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

// Login authenticates and initializes a session.  Any previous session
// is replaced.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.session = &Session{Token: resp.Access.Token, User: resp.User}
	c.session.save(c.storage)
	return c.session, nil
}

// Logout tears the session down locally and best-effort revokes it on
// the server.  Local state is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	c.teardown()
	c.Reservations.Reset()
	return err
}

// teardown destroys the session and clears persisted auth state.
func (c *Client) teardown() {
	c.session = nil
	clearSession(c.storage)
}

// ----- events -----

type eventListResponse struct {
	Events []*model.Event `json:"events"`
	Total  int            `json:"total"`
}

// ListEvents fetches the public catalogue page matching the query.
func (c *Client) ListEvents(ctx context.Context, search string, upcomingOnly, availableOnly bool) ([]*model.Event, int, error) {
	path := "/v1/events?search=" + url.QueryEscape(search)
	if upcomingOnly {
		path += "&upcoming_only=true"
	}
	if availableOnly {
		path += "&available_only=true"
	}
	var resp eventListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Events, resp.Total, nil
}

// GetEvent fetches one event with its derived availability fields.
func (c *Client) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	var resp struct {
		Event *model.Event `json:"event"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/events/"+strconv.FormatUint(id, 10), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

// ----- reservations -----

type reservationResponse struct {
	Reservation *model.Reservation `json:"reservation"`
}

type reservationListResponse struct {
	Reservations []*model.Reservation `json:"reservations"`
}

// CreateReservation places a hold and prepends the result to the local
// store.
func (c *Client) CreateReservation(ctx context.Context, eventID uint64, quantity int) (*model.Reservation, error) {
	body := map[string]any{"event_id": eventID, "ticket_quantity": quantity}
	var resp reservationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/reservations", body, &resp); err != nil {
		return nil, err
	}
	c.Reservations.Prepend(resp.Reservation)
	return resp.Reservation, nil
}

// ProcessPayment settles a reservation's payment and merges the server's
// view into the local store.  A second mutation for the same
// reservation while this one runs fails with ErrOperationInFlight.
func (c *Client) ProcessPayment(ctx context.Context, reservationID uint64, method, reference string) (*model.Reservation, error) {
	return c.mutateReservation(ctx, reservationID,
		"/v1/reservations/"+strconv.FormatUint(reservationID, 10)+"/payment",
		map[string]any{"method": method, "reference": reference})
}

// CancelReservation cancels a reservation and merges the result.
func (c *Client) CancelReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	return c.mutateReservation(ctx, reservationID,
		"/v1/reservations/"+strconv.FormatUint(reservationID, 10)+"/cancel", nil)
}

func (c *Client) mutateReservation(ctx context.Context, reservationID uint64, path string, body any) (*model.Reservation, error) {
	if !c.Reservations.beginMutation(reservationID) {
		return nil, ErrOperationInFlight
	}
	defer c.Reservations.endMutation(reservationID)

	var resp reservationResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	c.Reservations.Apply(resp.Reservation)
	return resp.Reservation, nil
}

// SyncReservations refetches the caller's reservations and resets the
// local store to the server's view.
func (c *Client) SyncReservations(ctx context.Context) ([]*model.Reservation, error) {
	var resp reservationListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/reservations", nil, &resp); err != nil {
		return nil, err
	}
	c.Reservations.Replace(resp.Reservations)
	return resp.Reservations, nil
}

// ----- transport -----

// do performs one API call: marshal body, attach bearer token, send,
// classify failures, decode the response.  GET requests are retried a
// bounded number of times on network errors; mutations never are, since
// the server may have applied them.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.session.Authenticated() {
			req.Header.Set("Authorization", "Bearer "+c.session.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &APIError{Kind: KindNetwork, Err: err}
			continue
		}
		return c.handleResponse(resp, out)
	}
	return lastErr
}

// envelope is the server's error body: a message plus optional per-field
// details.
type envelope struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors"`
}

func (c *Client) handleResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Error, Fields: env.Errors}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusUnprocessableEntity:
		// The token is dead either way; the session goes with it.
		apiErr.Kind = KindAuth
		c.teardown()
	case resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = KindForbidden
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case resp.StatusCode == http.StatusBadRequest && len(env.Errors) > 0:
		apiErr.Kind = KindValidation
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusBadRequest:
		apiErr.Kind = KindDomainState
	default:
		apiErr.Kind = KindDomainState
	}
	return apiErr
}

