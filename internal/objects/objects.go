// Package objects defines the wire types of the HTTP API.
package objects

// Error is the error payload of an error response.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// Token carries the offending token value for token auth errors.
	Token string `json:"token,omitempty"`
	// ExpiredAt carries the expiry for expired-token errors.
	ExpiredAt string `json:"expired_at,omitempty"`
	// Fields carries the offending field names for field permission errors.
	Fields []string `json:"fields,omitempty"`
}

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Error Error `json:"error"`
}
