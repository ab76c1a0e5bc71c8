package v1

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-gateway/internal/core/domain"
	logicv1 "github.com/duynhne/session-gateway/internal/logic/v1"
	"github.com/duynhne/session-gateway/internal/upstream"
	"github.com/duynhne/session-gateway/middleware"
	pkgzerolog "github.com/duynhne/session-gateway/pkg/logger/zerolog"
)

// Verification failure codes carried in the redirect's error parameter.
const (
	verifyErrMissingToken        = "missing_token"
	verifyErrFailed              = "verification_failed"
	verifyErrUpstreamUnavailable = "upstream_unavailable"
)

// Redirects holds the SPA routes the verification callback navigates to.
type Redirects struct {
	FrontendURL string
	SuccessPath string
	FailurePath string
}

// Handler groups HTTP handlers for the auth API.
// Dependencies are injected via the constructor, no global state.
type Handler struct {
	gateway   *logicv1.GatewayService
	cookies   *CookieCodec
	redirects Redirects
}

// NewHandler creates a new Handler.
func NewHandler(gateway *logicv1.GatewayService, cookies *CookieCodec, redirects Redirects) *Handler {
	redirects.FrontendURL = strings.TrimRight(redirects.FrontendURL, "/")
	return &Handler{
		gateway:   gateway,
		cookies:   cookies,
		redirects: redirects,
	}
}

// RegisterRoutes registers all auth routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/login", h.Login)
	rg.GET("/auth/me", h.Me)
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/auth/verify", h.Verify)
	rg.POST("/auth/resend-verification", h.ResendVerification)
}

// startSpan starts the web-layer span and installs its context on the request.
func startSpan(c *gin.Context) trace.Span {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	c.Request = c.Request.WithContext(ctx)
	return span
}

// bindBody validates the JSON body into req and returns the raw bytes to
// forward upstream. On failure a 400 has already been written.
func bindBody(c *gin.Context, span trace.Span, req any) ([]byte, bool) {
	if err := c.ShouldBindBodyWith(req, binding.JSON); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		pkgzerolog.FromContext(c.Request.Context()).Warn().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, domain.MessageResponse{Message: "Invalid request body"})
		return nil, false
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	raw, _ := c.Get(gin.BodyBytesKey)
	body, _ := raw.([]byte)
	return body, true
}

// writeUpstream writes an identity service reply unchanged.
func writeUpstream(c *gin.Context, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Data(status, contentType, body)
}

// writeError maps a service error onto an HTTP response. Upstream failures
// keep the identity service's status and body.
func writeError(c *gin.Context, span trace.Span, err error, fallback string) {
	span.RecordError(err)
	logger := pkgzerolog.FromContext(c.Request.Context())

	var upErr *upstream.UpstreamError
	switch {
	case errors.As(err, &upErr):
		logger.Warn().Err(err).Int("upstream_status", upErr.Status).Msg(fallback)
		writeUpstream(c, upErr.Status, upErr.ContentType, upErr.Body)
	case errors.Is(err, logicv1.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, domain.MessageResponse{Message: "Not authenticated"})
	default:
		logger.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, domain.MessageResponse{Message: fallback})
	}
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	var req domain.CredentialsRequest
	body, ok := bindBody(c, span, &req)
	if !ok {
		return
	}

	resp, err := h.gateway.Signup(c.Request.Context(), body)
	if err != nil {
		writeError(c, span, err, "Signup failed")
		return
	}

	pkgzerolog.FromContext(c.Request.Context()).Info().Str("email", req.Email).Msg("Signup forwarded")
	writeUpstream(c, resp.Status, resp.ContentType, resp.Body)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	var req domain.CredentialsRequest
	body, ok := bindBody(c, span, &req)
	if !ok {
		return
	}

	res, err := h.gateway.Login(c.Request.Context(), req.Email, body, h.cookies.SessionID(c))
	if err != nil {
		writeError(c, span, err, "Login failed")
		return
	}

	if err := h.cookies.Set(c, res.SessionID); err != nil {
		// Without a cookie the new session is unreachable; drop it.
		if rollbackErr := h.gateway.Logout(c.Request.Context(), res.SessionID); rollbackErr != nil {
			pkgzerolog.FromContext(c.Request.Context()).Warn().Err(rollbackErr).Msg("Failed to destroy session after cookie error")
		}
		writeError(c, span, err, "Login failed")
		return
	}

	pkgzerolog.FromContext(c.Request.Context()).Info().Str("email", req.Email).Msg("Login successful, session created")
	c.JSON(http.StatusOK, domain.LoginResponse{
		Message:    "Login successful",
		IsVerified: res.IsVerified,
	})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	status, err := h.gateway.Status(c.Request.Context(), h.cookies.SessionID(c))
	if err != nil {
		writeError(c, span, err, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, status)
}

// Logout handles POST /api/auth/logout. The cookie is cleared even when the
// store fails, so the browser never keeps a cookie the server could not
// account for; the failure itself is still reported as a 500.
func (h *Handler) Logout(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	err := h.gateway.Logout(c.Request.Context(), h.cookies.SessionID(c))
	h.cookies.Clear(c)
	if err != nil {
		writeError(c, span, err, "Logout failed")
		return
	}

	c.JSON(http.StatusOK, domain.MessageResponse{Message: "Logged out successfully"})
}

// Verify handles GET /api/auth/verify?token=... It is reached by a browser
// navigation, so both outcomes are redirects into the SPA.
func (h *Handler) Verify(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	err := h.gateway.Verify(c.Request.Context(), c.Query("token"), h.cookies.SessionID(c))
	if err != nil {
		span.RecordError(err)
		code := verifyErrorCode(err)
		pkgzerolog.FromContext(c.Request.Context()).Warn().Err(err).Str("code", code).Msg("Verification failed")
		c.Redirect(http.StatusFound, h.redirectURL(h.redirects.FailurePath, url.Values{
			"verified": {"false"},
			"error":    {code},
		}))
		return
	}

	c.Redirect(http.StatusFound, h.redirectURL(h.redirects.SuccessPath, url.Values{
		"verified": {"true"},
	}))
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *Handler) ResendVerification(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	var req domain.ResendVerificationRequest
	body, ok := bindBody(c, span, &req)
	if !ok {
		return
	}

	resp, err := h.gateway.ResendVerification(c.Request.Context(), body)
	if err != nil {
		writeError(c, span, err, "Failed to resend verification email")
		return
	}

	writeUpstream(c, resp.Status, resp.ContentType, resp.Body)
}

// redirectURL joins the frontend URL and path, merging query into any query
// the configured path already carries.
func (h *Handler) redirectURL(path string, query url.Values) string {
	u, err := url.Parse(h.redirects.FrontendURL + path)
	if err != nil {
		return h.redirects.FrontendURL + path + "?" + query.Encode()
	}
	q := u.Query()
	for k, vs := range query {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func verifyErrorCode(err error) string {
	var upErr *upstream.UpstreamError
	switch {
	case errors.Is(err, logicv1.ErrMissingVerificationToken):
		return verifyErrMissingToken
	case errors.As(err, &upErr) && upErr.Unreachable:
		return verifyErrUpstreamUnavailable
	default:
		return verifyErrFailed
	}
}

// Health reports liveness plus the upstream it proxies to.
func Health(upstreamURL, env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"upstream": upstreamURL,
			"env":      env,
		})
	}
}
