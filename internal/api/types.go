package api

import "time"

// OperatorLoginRequest represents the request payload for operator authentication
type OperatorLoginRequest struct {
	Callsign  string `json:"callsign" validate:"required"`
	AccessKey string `json:"access_key" validate:"required"`
}

// OperatorLoginResponse represents the response payload for operator authentication
type OperatorLoginResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	OperatorID string    `json:"operator_id"`
	Callsign   string    `json:"callsign"`
}

// PersonasResponse lists the selectable neural core personas.
type PersonasResponse struct {
	Personas []string `json:"personas"`
}

// ToolsResponse lists the selectable analysis tools.
type ToolsResponse struct {
	Tools []string `json:"tools"`
}

// AttachmentRequest carries a base64 data URL for validation before it rides
// along with a chat submission.
type AttachmentRequest struct {
	Image string `json:"image" validate:"required"`
}

// AttachmentResponse reports the decoded attachment properties.
type AttachmentResponse struct {
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
