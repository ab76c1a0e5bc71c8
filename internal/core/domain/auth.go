package domain

// CredentialsRequest is the signup and login payload. Only the email is
// inspected locally; the raw body is forwarded to the identity service.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

// ResendVerificationRequest is the resend-verification payload.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginResponse is returned on successful login. It deliberately has no token
// field: the bearer token stays on the server.
type LoginResponse struct {
	Message    string `json:"message"`
	IsVerified bool   `json:"isVerified"`
}

// SessionStatus is the "me" snapshot consumed by the SPA.
type SessionStatus struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

// MessageResponse is a plain message body.
type MessageResponse struct {
	Message string `json:"message"`
}
