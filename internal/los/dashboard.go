package los

import "context"

const pathDashboardSummary = "/dashboard/summary"

// DashboardSummary holds the headline counts shown on the dashboard.
type DashboardSummary struct {
	TotalCustomers       int            `json:"totalCustomers"`
	TotalApplications    int            `json:"totalApplications"`
	PendingApplications  int            `json:"pendingApplications"`
	ApprovedApplications int            `json:"approvedApplications"`
	RejectedApplications int            `json:"rejectedApplications"`
	TotalLoanAmount      float64        `json:"totalLoanAmount"`
	ApplicationsByStatus map[string]int `json:"applicationsByStatus,omitempty"`
}

// DashboardSummary fetches the dashboard counts.
func (c *Client) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var summary DashboardSummary
	if err := c.api.Get(ctx, pathDashboardSummary, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
