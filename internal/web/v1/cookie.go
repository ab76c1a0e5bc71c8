package v1

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CookieCodec writes and reads the session cookie. The cookie value is an
// HS256-signed JWT whose jti is the session id, so a forged or tampered
// cookie is rejected before the session store is consulted.
type CookieCodec struct {
	name     string
	secret   []byte
	ttl      time.Duration
	secure   bool
	sameSite http.SameSite
	method   jwt.SigningMethod
	now      func() time.Time
}

// CookieOptions configures a CookieCodec.
type CookieOptions struct {
	Name     string
	Secret   string
	TTL      time.Duration
	Secure   bool
	SameSite http.SameSite
}

// NewCookieCodec creates a CookieCodec.
func NewCookieCodec(opts CookieOptions) *CookieCodec {
	return &CookieCodec{
		name:     opts.Name,
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		secure:   opts.Secure,
		sameSite: opts.SameSite,
		method:   jwt.SigningMethodHS256,
		now:      time.Now,
	}
}

// Encode signs the session id into a cookie value.
func (cc *CookieCodec) Encode(sessionID string) (string, error) {
	now := cc.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cc.ttl)),
	}
	value, err := jwt.NewWithClaims(cc.method, claims).SignedString(cc.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return value, nil
}

// Decode verifies a cookie value and returns the session id it carries.
func (cc *CookieCodec) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return cc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cc.now),
	)
	if err != nil {
		return "", fmt.Errorf("verify session cookie: %w", err)
	}
	if claims.ID == "" {
		return "", errors.New("verify session cookie: missing session id")
	}
	return claims.ID, nil
}

// SessionID returns the session id from the request cookie, or "" when the
// cookie is absent or fails verification.
func (cc *CookieCodec) SessionID(c *gin.Context) string {
	value, err := c.Cookie(cc.name)
	if err != nil || value == "" {
		return ""
	}
	id, err := cc.Decode(value)
	if err != nil {
		return ""
	}
	return id
}

// Set writes the session cookie for sessionID.
func (cc *CookieCodec) Set(c *gin.Context, sessionID string) error {
	value, err := cc.Encode(sessionID)
	if err != nil {
		return err
	}
	c.SetSameSite(cc.sameSite)
	c.SetCookie(cc.name, value, int(cc.ttl.Seconds()), "/", "", cc.secure, true)
	return nil
}

// Clear expires the session cookie in the browser.
func (cc *CookieCodec) Clear(c *gin.Context) {
	c.SetSameSite(cc.sameSite)
	c.SetCookie(cc.name, "", -1, "/", "", cc.secure, true)
}
