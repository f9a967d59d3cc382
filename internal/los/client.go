// Package los provides typed clients for the LOS resource endpoints:
// customers, loan applications and the dashboard summary.
//
// All calls go through api.Client, so they carry the bearer token and get the
// same refresh-and-retry and error classification as the auth flow.
package los

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/losctl/internal/api"
	"github.com/felixgeelhaar/losctl/internal/errors"
)

// Client is the LOS resource client.
type Client struct {
	api *api.Client
}

// New wraps an api.Client.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// ID is a resource identifier. The backend sends either numbers or strings.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier.
func (id ID) String() string {
	return string(id)
}

// Page is the backend's paginated list envelope.
type Page[T any] struct {
	Content       []T `json:"content"`
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// ListOptions filters and paginates list calls. Zero values are omitted.
type ListOptions struct {
	Page   int    `validate:"gte=0"`
	Size   int    `validate:"gte=0,lte=200"`
	Search string `validate:"max=100"`
	Status string `validate:"omitempty,oneof=DRAFT SUBMITTED UNDER_REVIEW APPROVED REJECTED CANCELLED"`
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Size > 0 {
		q.Set("size", strconv.Itoa(o.Size))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	return q
}

func resourcePath(base string, id ID, suffix ...string) (string, error) {
	if id == "" {
		return "", errors.New(errors.KindValidation, errors.ErrCodeInvalidPayload, "id is required")
	}
	p := base + "/" + url.PathEscape(string(id))
	for _, s := range suffix {
		p += "/" + s
	}
	return p, nil
}
