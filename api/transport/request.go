package transport

import "encoding/json"

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type EntityRequest struct {
	ID     string         `json:"id"`
	Views  int64          `json:"views,omitempty"`
	Fields map[string]any `json:"fields"`
}

type SettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

type MediaUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// Data carries the file bytes base64-encoded by encoding/json.
	Data []byte `json:"data"`
}
