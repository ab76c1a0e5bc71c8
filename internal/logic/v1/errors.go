// Package v1 provides the session-gateway business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors for the local failure modes of the
// gateway. They are wrapped with context using fmt.Errorf("%w") when returned
// from service methods. Failures of the identity service are not wrapped in a
// sentinel: they surface as *upstream.UpstreamError so handlers can pass the
// upstream status and body through unchanged.
//
// Error Checking (in handlers):
//
//	var upErr *upstream.UpstreamError
//	switch {
//	case errors.As(err, &upErr):
//	    c.Data(upErr.Status, upErr.ContentType, upErr.Body)
//	case errors.Is(err, logicv1.ErrSessionNotFound):
//	    c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
//	}
package v1

import "errors"

// Sentinel errors for gateway operations.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// ErrSessionNotFound indicates the cookie names no live session.
	// HTTP Status: 401 Unauthorized
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionStore indicates the session backing failed to read or write.
	// HTTP Status: 500 Internal Server Error
	ErrSessionStore = errors.New("session store failure")

	// ErrMissingVerificationToken indicates the verification link had no token.
	// Surfaced as a redirect to the failure route.
	ErrMissingVerificationToken = errors.New("missing verification token")
)
