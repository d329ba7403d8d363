package neocities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Response is the envelope every NeoCities API body carries.
type Response struct {
	Result    string `json:"result"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// OK reports whether the API accepted the request.
func (r *Response) OK() bool {
	return r != nil && r.Result == resultSuccess
}

// Err returns the API-reported failure as an *APIError, or nil on success.
func (r *Response) Err() error {
	if r == nil {
		return &APIError{Type: "invalid_response", Message: "empty response"}
	}
	switch r.Result {
	case resultSuccess:
		return nil
	case resultError:
		return &APIError{Type: r.ErrorType, Message: r.Message}
	default:
		return &APIError{Type: "invalid_response", Message: fmt.Sprintf("unexpected result %q", r.Result)}
	}
}

// SiteInfo holds the metadata returned by the info endpoint
type SiteInfo struct {
	Sitename       string    `json:"sitename"`
	Views          int64     `json:"views"`
	Hits           int64     `json:"hits"`
	CreatedAt      Timestamp `json:"created_at"`
	LastUpdated    Timestamp `json:"last_updated"`
	Domain         *string   `json:"domain"`
	Tags           []string  `json:"tags"`
	LatestIPFSHash *string   `json:"latest_ipfs_hash"`
}

// InfoResponse represents the API response for site info
type InfoResponse struct {
	Response
	Info SiteInfo `json:"info"`
}

// RemoteFile is one entry of a remote listing. Paths are root-relative.
type RemoteFile struct {
	Path        string    `json:"path"`
	IsDirectory bool      `json:"is_directory"`
	Size        *int64    `json:"size,omitempty"`
	SHA1Hash    string    `json:"sha1_hash,omitempty"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// ListResponse represents the API response for list
type ListResponse struct {
	Response
	Files []RemoteFile `json:"files"`
}

// KeyResponse represents the API response for key retrieval
type KeyResponse struct {
	Response
	APIKey string `json:"api_key"`
}

// timestampLayouts are tried in order. The API emits RFC 1123 dates with a
// numeric zone such as "Sat, 13 Feb 2016 16:55:24 -0000".
var timestampLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// Timestamp decodes the API's date strings. The zero value means absent.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts null, an empty string or any of timestampLayouts.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON writes the API's RFC 1123 form, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC1123Z))
}
