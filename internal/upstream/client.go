// Package upstream is the request/response bridge to the external identity
// service. It forwards payloads verbatim, never retries, and turns every
// failure into an *UpstreamError carrying the status and body the gateway
// should hand back to the browser.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-gateway/internal/core/domain"
	"github.com/duynhne/session-gateway/middleware"
)

// Operation names, used for metrics, spans and default failure messages.
const (
	OpSignup             = "signup"
	OpLogin              = "login"
	OpVerify             = "verify"
	OpResendVerification = "resend_verification"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	// maxBodyBytes bounds how much of an upstream reply is buffered. Larger
	// replies are rejected rather than truncated.
	maxBodyBytes = 1 << 20
)

var defaultMessages = map[string]string{
	OpSignup:             "Signup failed",
	OpLogin:              "Login failed",
	OpVerify:             "Verification failed",
	OpResendVerification: "Failed to resend verification email",
}

// UpstreamError is returned for every failed identity service call. Status
// and Body are what the browser should receive. Unreachable is set when no
// response arrived at all (network failure or timeout).
type UpstreamError struct {
	Op          string
	Status      int
	ContentType string
	Body        []byte
	Unreachable bool
	Err         error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s: status %d", e.Op, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client implements domain.IdentityProvider over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ domain.IdentityProvider = (*Client)(nil)

// New creates a Client for the identity service at baseURL. Every call is
// bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Signup forwards a registration payload to POST /auth/signup.
func (c *Client) Signup(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	return c.do(ctx, OpSignup, http.MethodPost, "/auth/signup", body)
}

// Login forwards credentials to POST /auth/login and decodes the issued token.
// A successful reply without a token is reported as a 502 UpstreamError so a
// session is never created without one.
func (c *Client) Login(ctx context.Context, body []byte) (*domain.LoginGrant, error) {
	resp, err := c.do(ctx, OpLogin, http.MethodPost, "/auth/login", body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Token      string `json:"token"`
		IsVerified bool   `json:"isVerified"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Token == "" {
		if err == nil {
			err = errors.New("response has no token")
		}
		return nil, &UpstreamError{
			Op:          OpLogin,
			Status:      http.StatusBadGateway,
			ContentType: jsonContentType,
			Body:        messageBody(defaultMessages[OpLogin]),
			Err:         fmt.Errorf("decode login response: %w", err),
		}
	}

	return &domain.LoginGrant{
		Token:      payload.Token,
		IsVerified: payload.IsVerified,
		Response:   *resp,
	}, nil
}

// Verify redeems a verification token via GET /auth/verify?token=.
func (c *Client) Verify(ctx context.Context, token string) (*domain.UpstreamResponse, error) {
	return c.do(ctx, OpVerify, http.MethodGet, "/auth/verify?token="+url.QueryEscape(token), nil)
}

// ResendVerification forwards to POST /auth/resend-verification.
func (c *Client) ResendVerification(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	return c.do(ctx, OpResendVerification, http.MethodPost, "/auth/resend-verification", body)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*domain.UpstreamResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "upstream."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("layer", "upstream"),
		attribute.String("http.method", method),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.send(ctx, op, method, path, body)
	middleware.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	middleware.UpstreamRequestsTotal.WithLabelValues(op, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream call failed")
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			span.SetAttributes(attribute.Int("http.status_code", upErr.Status))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	return resp, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, body []byte) (*domain.UpstreamResponse, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, unreachable(op, http.StatusInternalServerError, fmt.Errorf("build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, unreachable(op, http.StatusGatewayTimeout, err)
		}
		return nil, unreachable(op, http.StatusInternalServerError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, unreachable(op, http.StatusGatewayTimeout, err)
		}
		return nil, unreachable(op, http.StatusInternalServerError, fmt.Errorf("read response: %w", err))
	}
	if len(respBody) > maxBodyBytes {
		return nil, &UpstreamError{
			Op:          op,
			Status:      http.StatusBadGateway,
			ContentType: jsonContentType,
			Body:        messageBody(defaultMessages[op]),
			Err:         fmt.Errorf("response body exceeds %d bytes", maxBodyBytes),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &UpstreamError{
			Op:          op,
			Status:      resp.StatusCode,
			ContentType: contentType,
			Body:        respBody,
		}
		if len(respBody) == 0 {
			upErr.ContentType = jsonContentType
			upErr.Body = messageBody(defaultMessages[op])
		}
		return nil, upErr
	}

	return &domain.UpstreamResponse{
		Status:      resp.StatusCode,
		ContentType: contentType,
		Body:        respBody,
	}, nil
}

func unreachable(op string, status int, err error) *UpstreamError {
	return &UpstreamError{
		Op:          op,
		Status:      status,
		ContentType: jsonContentType,
		Body:        messageBody(defaultMessages[op]),
		Unreachable: true,
		Err:         err,
	}
}

func messageBody(msg string) []byte {
	b, _ := json.Marshal(domain.MessageResponse{Message: msg})
	return b
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return "error"
	}
	switch {
	case upErr.Unreachable && upErr.Status == http.StatusGatewayTimeout:
		return "timeout"
	case upErr.Unreachable:
		return "unreachable"
	default:
		return "upstream_error"
	}
}
