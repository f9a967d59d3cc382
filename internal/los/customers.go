package los

import (
	"context"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/validate"
)

const pathCustomers = "/customers"

// Customer is a loan applicant.
type Customer struct {
	ID               ID      `json:"id"`
	FullName         string  `json:"fullName"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	NationalID       string  `json:"nationalId"`
	DateOfBirth      string  `json:"dateOfBirth,omitempty"`
	Address          string  `json:"address,omitempty"`
	EmploymentStatus string  `json:"employmentStatus,omitempty"`
	MonthlyIncome    float64 `json:"monthlyIncome,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// CustomerInput is the create/update payload.
type CustomerInput struct {
	FullName         string  `json:"fullName" yaml:"fullName" validate:"required,min=2,max=100"`
	Email            string  `json:"email" yaml:"email" validate:"required,email"`
	Phone            string  `json:"phone" yaml:"phone" validate:"required,phone"`
	NationalID       string  `json:"nationalId" yaml:"nationalId" validate:"required,alphanum,min=9,max=12"`
	DateOfBirth      string  `json:"dateOfBirth,omitempty" yaml:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Address          string  `json:"address,omitempty" yaml:"address" validate:"max=255"`
	EmploymentStatus string  `json:"employmentStatus,omitempty" yaml:"employmentStatus" validate:"omitempty,oneof=EMPLOYED SELF_EMPLOYED UNEMPLOYED RETIRED STUDENT"`
	MonthlyIncome    float64 `json:"monthlyIncome,omitempty" yaml:"monthlyIncome" validate:"gte=0"`
}

// Validate checks the payload locally.
func (in CustomerInput) Validate() error {
	return validate.Struct(in, errors.ErrCodeInvalidPayload)
}

// ListCustomers returns one page of customers.
func (c *Client) ListCustomers(ctx context.Context, opts ListOptions) (*Page[Customer], error) {
	opts.Status = ""
	if err := validate.Struct(opts, errors.ErrCodeInvalidPayload); err != nil {
		return nil, err
	}

	var page Page[Customer]
	if err := c.api.Get(ctx, pathCustomers, opts.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCustomer retrieves a customer by ID.
func (c *Client) GetCustomer(ctx context.Context, id ID) (*Customer, error) {
	path, err := resourcePath(pathCustomers, id)
	if err != nil {
		return nil, err
	}

	var customer Customer
	if err := c.api.Get(ctx, path, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCustomer creates a customer.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var customer Customer
	if err := c.api.Post(ctx, pathCustomers, in, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer replaces a customer's details.
func (c *Client) UpdateCustomer(ctx context.Context, id ID, in CustomerInput) (*Customer, error) {
	path, err := resourcePath(pathCustomers, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var customer Customer
	if err := c.api.Put(ctx, path, in, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteCustomer deletes a customer.
func (c *Client) DeleteCustomer(ctx context.Context, id ID) error {
	path, err := resourcePath(pathCustomers, id)
	if err != nil {
		return err
	}
	return c.api.Delete(ctx, path)
}
