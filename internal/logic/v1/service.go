package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-gateway/internal/core/domain"
	"github.com/duynhne/session-gateway/middleware"
	pkgzerolog "github.com/duynhne/session-gateway/pkg/logger/zerolog"
)

// GatewayService implements the session-bridging rules between browser
// sessions and the upstream identity service.
// It depends on the identity provider and session store interfaces (injected
// via constructor) and MUST NOT speak HTTP to the browser directly.
type GatewayService struct {
	identity domain.IdentityProvider
	sessions domain.SessionStore
}

// NewGatewayService creates a new GatewayService with the given dependencies.
func NewGatewayService(identity domain.IdentityProvider, sessions domain.SessionStore) *GatewayService {
	return &GatewayService{
		identity: identity,
		sessions: sessions,
	}
}

// LoginResult is what the web layer needs to finish a login: the id to put in
// the cookie and the verification flag for the response body.
type LoginResult struct {
	SessionID  string
	Email      string
	IsVerified bool
}

// Signup forwards a registration payload. No session is created.
func (s *GatewayService) Signup(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "gateway.signup", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	resp, err := s.identity.Signup(ctx, body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("signup: %w", err)
	}
	return resp, nil
}

// Login exchanges credentials for an upstream token and stores it in a new
// session. previousSessionID, when set, names the session the browser already
// holds; it is destroyed once the new one exists so a cookie maps to at most
// one session. On any upstream failure no session is created.
func (s *GatewayService) Login(ctx context.Context, email string, body []byte, previousSessionID string) (*LoginResult, error) {
	ctx, span := middleware.StartSpan(ctx, "gateway.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("email", email),
	))
	defer span.End()

	grant, err := s.identity.Login(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		return nil, fmt.Errorf("login %q: %w", email, err)
	}

	id, err := s.sessions.Create(ctx, email, grant.Token, grant.IsVerified)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create session for %q: %w: %w", email, ErrSessionStore, err)
	}
	middleware.SessionsCreatedTotal.Inc()

	if previousSessionID != "" && previousSessionID != id {
		// Best-effort: the old cookie is overwritten either way and the old
		// record expires on its own.
		if destroyErr := s.sessions.Destroy(ctx, previousSessionID); destroyErr != nil {
			span.RecordError(fmt.Errorf("destroy previous session: %w", destroyErr))
			pkgzerolog.FromContext(ctx).Warn().Err(destroyErr).Msg("Failed to destroy previous session on re-login")
		} else {
			middleware.SessionsDestroyedTotal.Inc()
		}
	}

	span.SetAttributes(
		attribute.Bool("auth.success", true),
		attribute.Bool("session.verified", grant.IsVerified),
	)
	span.AddEvent("session.created")

	return &LoginResult{
		SessionID:  id,
		Email:      email,
		IsVerified: grant.IsVerified,
	}, nil
}

// Status returns the email and verification snapshot of the session.
// The bearer token is never part of the result.
func (s *GatewayService) Status(ctx context.Context, sessionID string) (*domain.SessionStatus, error) {
	ctx, span := middleware.StartSpan(ctx, "gateway.status", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if sessionID == "" {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, fmt.Errorf("lookup session: no cookie: %w", ErrSessionNotFound)
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("lookup session: %w: %w", ErrSessionStore, err)
	}
	if sess == nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, fmt.Errorf("lookup session: %w", ErrSessionNotFound)
	}

	span.SetAttributes(
		attribute.Bool("session.valid", true),
		attribute.Bool("session.verified", sess.IsVerified),
	)
	return &domain.SessionStatus{
		Email:      sess.Email,
		IsVerified: sess.IsVerified,
	}, nil
}

// Logout destroys the session. Logging out without a session succeeds.
// A store failure is returned as ErrSessionStore and must be reported as a
// server error.
func (s *GatewayService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := middleware.StartSpan(ctx, "gateway.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if sessionID == "" {
		return nil
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("destroy session: %w: %w", ErrSessionStore, err)
	}
	middleware.SessionsDestroyedTotal.Inc()
	span.AddEvent("session.destroyed")
	return nil
}

// Verify redeems a verification token upstream and, when it succeeds and the
// browser holds a session, marks that session verified. The local flip is a
// cache update: its failure is logged, not returned, because the upstream
// already holds the authoritative state.
func (s *GatewayService) Verify(ctx context.Context, token, sessionID string) error {
	ctx, span := middleware.StartSpan(ctx, "gateway.verify", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Bool("session.present", sessionID != ""),
	))
	defer span.End()

	if token == "" {
		middleware.VerificationsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("verify: %w", ErrMissingVerificationToken)
	}

	if _, err := s.identity.Verify(ctx, token); err != nil {
		span.RecordError(err)
		middleware.VerificationsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("verify: %w", err)
	}
	middleware.VerificationsTotal.WithLabelValues("success").Inc()

	if sessionID == "" {
		return nil
	}

	updated, err := s.sessions.SetVerified(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		pkgzerolog.FromContext(ctx).Warn().Err(err).Msg("Failed to mark session verified")
		return nil
	}
	span.SetAttributes(attribute.Bool("session.updated", updated))
	return nil
}

// ResendVerification forwards a resend request to the identity service.
func (s *GatewayService) ResendVerification(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "gateway.resend_verification", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	resp, err := s.identity.ResendVerification(ctx, body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resend verification: %w", err)
	}
	return resp, nil
}
