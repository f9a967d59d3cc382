package auth

import (
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/validate"
)

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// Validate checks credentials locally. The error is a ValidationError.
func (c Credentials) Validate() error {
	return validate.Struct(c, errors.ErrCodeInvalidCredentials)
}
