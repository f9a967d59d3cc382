package los

import (
	"context"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/validate"
)

const pathLoanApplications = "/loan-applications"

// Loan application statuses.
const (
	StatusDraft       = "DRAFT"
	StatusSubmitted   = "SUBMITTED"
	StatusUnderReview = "UNDER_REVIEW"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
	StatusCancelled   = "CANCELLED"
)

// LoanApplication is a loan request made on behalf of a customer.
type LoanApplication struct {
	ID                ID      `json:"id"`
	ApplicationNumber string  `json:"applicationNumber,omitempty"`
	CustomerID        ID      `json:"customerId"`
	CustomerName      string  `json:"customerName,omitempty"`
	LoanType          string  `json:"loanType"`
	Amount            float64 `json:"amount"`
	TermMonths        int     `json:"termMonths"`
	InterestRate      float64 `json:"interestRate,omitempty"`
	Purpose           string  `json:"purpose,omitempty"`
	Status            string  `json:"status"`
	SubmittedAt       string  `json:"submittedAt,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
}

// LoanApplicationInput is the create payload. New applications start as drafts.
type LoanApplicationInput struct {
	CustomerID ID      `json:"customerId" yaml:"customerId" validate:"required"`
	LoanType   string  `json:"loanType" yaml:"loanType" validate:"required,oneof=PERSONAL MORTGAGE AUTO BUSINESS EDUCATION"`
	Amount     float64 `json:"amount" yaml:"amount" validate:"gt=0,lte=100000000000"`
	TermMonths int     `json:"termMonths" yaml:"termMonths" validate:"gte=1,lte=480"`
	Purpose    string  `json:"purpose,omitempty" yaml:"purpose" validate:"max=500"`
}

// Validate checks the payload locally.
func (in LoanApplicationInput) Validate() error {
	return validate.Struct(in, errors.ErrCodeInvalidPayload)
}

// ListLoanApplications returns one page of loan applications, optionally
// filtered by status.
func (c *Client) ListLoanApplications(ctx context.Context, opts ListOptions) (*Page[LoanApplication], error) {
	if err := validate.Struct(opts, errors.ErrCodeInvalidPayload); err != nil {
		return nil, err
	}

	var page Page[LoanApplication]
	if err := c.api.Get(ctx, pathLoanApplications, opts.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetLoanApplication retrieves a loan application by ID.
func (c *Client) GetLoanApplication(ctx context.Context, id ID) (*LoanApplication, error) {
	path, err := resourcePath(pathLoanApplications, id)
	if err != nil {
		return nil, err
	}

	var app LoanApplication
	if err := c.api.Get(ctx, path, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateLoanApplication creates a draft loan application.
func (c *Client) CreateLoanApplication(ctx context.Context, in LoanApplicationInput) (*LoanApplication, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var app LoanApplication
	if err := c.api.Post(ctx, pathLoanApplications, in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// SubmitLoanApplication moves a draft to SUBMITTED.
func (c *Client) SubmitLoanApplication(ctx context.Context, id ID) (*LoanApplication, error) {
	path, err := resourcePath(pathLoanApplications, id, "submit")
	if err != nil {
		return nil, err
	}

	var app LoanApplication
	if err := c.api.Post(ctx, path, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
