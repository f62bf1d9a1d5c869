package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodySize = 1 << 20 // 1MB

var ErrMissingSessionID = errors.New("no session id returned from the server")

// Paths are relative to the base url. {session_id}, {id} and {email} are
// substituted.
type Paths struct {
	CreateCheckout string
	VerifyPayment  string
	Login          string
	Car            string
	UserOrders     string
}

func DefaultPaths() Paths {
	return Paths{
		CreateCheckout: "/checkout-sessions",
		VerifyPayment:  "/checkout-sessions/{session_id}/verify",
		Login:          "/auth/login",
		Car:            "/cars/{id}",
		UserOrders:     "/orders/user/{email}",
	}
}

func (p Paths) withDefaults() Paths {
	d := DefaultPaths()
	if p.CreateCheckout == "" {
		p.CreateCheckout = d.CreateCheckout
	}
	if p.VerifyPayment == "" {
		p.VerifyPayment = d.VerifyPayment
	}
	if p.Login == "" {
		p.Login = d.Login
	}
	if p.Car == "" {
		p.Car = d.Car
	}
	if p.UserOrders == "" {
		p.UserOrders = d.UserOrders
	}
	return p
}

type Options struct {
	BaseURL            string
	Paths              Paths
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	Transport          http.RoundTripper
	Logger             *logger.Logger
	Metrics            *metrics.Metrics
}

type response struct {
	status int
	body   []byte
}

// Client talks to the storefront backend. Every call is a single attempt; the
// breaker only fails fast while the backend is known to be down.
type Client struct {
	baseURL string
	paths   Paths
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	opts.Paths = opts.Paths.withDefaults()
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	log := opts.Logger
	maxFailures := opts.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "storefront-backend",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		},
	})

	return &Client{
		baseURL: base.String(),
		paths:   opts.Paths,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		breaker: breaker,
		log:     log,
		metrics: opts.Metrics,
	}, nil
}

// CreateCheckoutSession asks the backend to open a payment session for req.
func (c *Client) CreateCheckoutSession(ctx context.Context, token string, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	const op = "create_checkout_session"

	var dto checkoutSessionDTO
	if _, err := c.do(ctx, op, http.MethodPost, c.paths.CreateCheckout, token, newCheckoutRequestDTO(req), &dto); err != nil {
		return domain.CheckoutSession{}, err
	}
	if strings.TrimSpace(dto.SessionID) == "" {
		return domain.CheckoutSession{}, ErrMissingSessionID
	}
	return domain.CheckoutSession{SessionID: dto.SessionID}, nil
}

// VerifyPayment asks the backend whether the session was paid.
func (c *Client) VerifyPayment(ctx context.Context, token, sessionID string) (domain.VerifyResult, error) {
	const op = "verify_payment"

	path := strings.ReplaceAll(c.paths.VerifyPayment, "{session_id}", url.PathEscape(sessionID))
	var dto verifyResultDTO
	message, err := c.do(ctx, op, http.MethodGet, path, token, nil, &dto)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	orders := make([]domain.Order, 0, len(dto.Orders))
	for _, o := range dto.Orders {
		orders = append(orders, o.toDomain())
	}
	return domain.VerifyResult{
		Verified:   dto.Verified,
		OrderError: dto.OrderError,
		Message:    message,
		Orders:     orders,
	}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthSession, error) {
	const op = "login"

	body, err := c.send(ctx, op, http.MethodPost, c.paths.Login, "", loginRequestDTO{Email: email, Password: password})
	if err != nil {
		return domain.AuthSession{}, err
	}

	var dto loginResponseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.AuthSession{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if dto.Token == "" {
		return domain.AuthSession{}, fmt.Errorf("%s: no token returned from the server", op)
	}
	return domain.AuthSession{
		Token: dto.Token,
		Identity: domain.Identity{
			ID:    dto.Data.ID,
			Email: dto.Data.Email,
			Name:  dto.Data.Name,
			Role:  dto.Data.Role,
		},
	}, nil
}

func (c *Client) GetCar(ctx context.Context, id string) (domain.Car, error) {
	const op = "get_car"

	path := strings.ReplaceAll(c.paths.Car, "{id}", url.PathEscape(id))
	var dto carDTO
	if _, err := c.do(ctx, op, http.MethodGet, path, "", nil, &dto); err != nil {
		return domain.Car{}, err
	}
	if dto.ID == "" {
		dto.ID = id
	}
	return dto.toDomain(), nil
}

// ListOrders returns the orders placed by email, newest first as the backend
// sends them.
func (c *Client) ListOrders(ctx context.Context, token, email string) ([]domain.Order, error) {
	const op = "list_orders"

	path := strings.ReplaceAll(c.paths.UserOrders, "{email}", url.PathEscape(email))
	var dtos []orderDTO
	if _, err := c.do(ctx, op, http.MethodGet, path, token, nil, &dtos); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(dtos))
	for _, o := range dtos {
		orders = append(orders, o.toDomain())
	}
	return orders, nil
}

// do sends the request and decodes the enveloped payload into out. It returns
// the envelope message.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) (string, error) {
	body, err := c.send(ctx, op, method, path, token, in)
	if err != nil {
		return "", err
	}
	payload, message, err := unwrap(body)
	if err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return "", fmt.Errorf("%s: decode payload: %w", op, err)
	}
	return message, nil
}

func (c *Client) send(ctx context.Context, op, method, path, token string, in any) (body []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveBackend(op, err, time.Since(start))
	}()

	var reader io.Reader
	if in != nil {
		payload, encErr := json.Marshal(in)
		if encErr != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, encErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(middleware.RequestIDHeader, requestID(ctx))

	resp, err := c.breaker.Execute(func() (*response, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		out := &response{status: res.StatusCode, body: data}
		if res.StatusCode >= http.StatusInternalServerError {
			return out, apiError(op, out)
		}
		return out, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		c.log.WarnErr(ctx, op+" request failed", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, apiError(op, resp)
	}
	return resp.body, nil
}

func apiError(op string, resp *response) *APIError {
	apiErr := &APIError{Operation: op, StatusCode: resp.status}
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err == nil {
		apiErr.Message = env.Message
	}
	return apiErr
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
