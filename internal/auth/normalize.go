package auth

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/session"
)

// rawUser accepts every user shape the backend has been seen to return.
type rawUser struct {
	ID            json.RawMessage `json:"id"`
	Username      string          `json:"username"`
	Name          string          `json:"name"`
	FullName      string          `json:"fullName"`
	FullNameSnake string          `json:"full_name"`
	Email         string          `json:"email"`
	Role          string          `json:"role"`
	Roles         []string        `json:"roles"`
	Permissions   []string        `json:"permissions"`
	IsActive      *bool           `json:"isActive"`
	Active        *bool           `json:"active"`
	IsActiveSnake *bool           `json:"is_active"`
}

// NormalizeUser turns a backend user payload into a session.User.
//
// The payload may be the bare record or wrapped in {"data": ...} or
// {"user": ...}. Name falls back to fullName, then username. Roles default
// to the primary role, permissions to empty, and the active flag to true.
func NormalizeUser(raw json.RawMessage) (*session.User, error) {
	raw = unwrapUser(raw)

	var r rawUser
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.NewBadResponseError(err)
	}
	if r.Username == "" {
		return nil, errors.New(errors.KindServer, errors.ErrCodeBadResponse, "user record has no username")
	}

	id, err := normalizeID(r.ID)
	if err != nil {
		return nil, errors.NewBadResponseError(err)
	}

	u := &session.User{
		ID:          id,
		Username:    r.Username,
		Name:        firstNonEmpty(r.Name, r.FullName, r.FullNameSnake, r.Username),
		Email:       r.Email,
		Role:        r.Role,
		Roles:       r.Roles,
		Permissions: r.Permissions,
		Active:      true,
	}

	if len(u.Roles) == 0 && u.Role != "" {
		u.Roles = []string{u.Role}
	}
	if u.Role == "" && len(u.Roles) > 0 {
		u.Role = u.Roles[0]
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}

	for _, flag := range []*bool{r.IsActive, r.Active, r.IsActiveSnake} {
		if flag != nil {
			u.Active = *flag
			break
		}
	}

	return u, nil
}

// unwrapUser strips a {"data": ...} or {"user": ...} envelope.
func unwrapUser(raw json.RawMessage) json.RawMessage {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	if _, ok := envelope["username"]; ok {
		return raw
	}
	for _, key := range []string{"data", "user"} {
		if inner, ok := envelope[key]; ok && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
			return unwrapUser(inner)
		}
	}
	return raw
}

// normalizeID accepts a JSON string or number.
func normalizeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
