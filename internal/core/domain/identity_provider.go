package domain

import "context"

// UpstreamResponse is a successful identity service reply, kept byte-for-byte
// so the gateway can pass it through unchanged.
type UpstreamResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// LoginGrant is the result of a successful upstream login.
type LoginGrant struct {
	Token      string
	IsVerified bool
	Response   UpstreamResponse
}

// IdentityProvider defines the contract with the upstream identity service.
// Implementations live in internal/upstream.
// The Logic layer depends on this interface only, never on HTTP details.
type IdentityProvider interface {
	// Signup forwards a registration payload.
	Signup(ctx context.Context, body []byte) (*UpstreamResponse, error)

	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, body []byte) (*LoginGrant, error)

	// Verify redeems an out-of-band email verification token.
	Verify(ctx context.Context, token string) (*UpstreamResponse, error)

	// ResendVerification asks the identity service to send a new
	// verification email.
	ResendVerification(ctx context.Context, body []byte) (*UpstreamResponse, error)
}
