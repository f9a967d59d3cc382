package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/losctl/internal/health"
	"github.com/felixgeelhaar/losctl/internal/los"
	"github.com/felixgeelhaar/losctl/internal/session"
	"github.com/felixgeelhaar/losctl/internal/ux"
)

// sessionView is what auth status reports. The token itself is never shown.
type sessionView struct {
	Status          session.Status `json:"status" yaml:"status"`
	IsAuthenticated bool           `json:"isAuthenticated" yaml:"isAuthenticated"`
	User            *session.User  `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Storage         string         `json:"storage" yaml:"storage"`
	Error           string         `json:"error,omitempty" yaml:"error,omitempty"`
	Verification    string         `json:"verification,omitempty" yaml:"verification,omitempty"`
}

func newSessionView(snap session.Snapshot, backend string) *sessionView {
	if backend == "" {
		backend = "file"
	}
	return &sessionView{
		Status:          snap.Status,
		IsAuthenticated: snap.IsAuthenticated,
		User:            snap.User,
		Storage:         backend,
		Error:           snap.Error,
	}
}

func (v *sessionView) WriteText(w io.Writer, s ux.Styles) error {
	var b strings.Builder
	if !v.IsAuthenticated {
		b.WriteString(s.Warning.Render("Not logged in"))
		if v.Error != "" {
			fmt.Fprintf(&b, "\n%s %s", s.Label.Render("Last error:"), v.Error)
		}
		b.WriteString("\n" + s.Muted.Render("Run 'losctl auth login' to sign in"))
	} else {
		fmt.Fprintf(&b, "%s %s\n", s.Success.Render("Logged in as"), s.Title.Render(v.User.Username))
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Name:    "), v.User.Name)
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Roles:   "), joinOrDash(v.User.Roles))
		if v.ExpiresAt != nil {
			remaining := time.Until(*v.ExpiresAt).Round(time.Second)
			expiry := v.ExpiresAt.Local().Format(time.RFC1123)
			if remaining <= 0 {
				expiry += " " + s.Warning.Render("(expired, refreshed on next call)")
			} else {
				expiry += " " + s.Muted.Render("(in "+remaining.String()+")")
			}
			fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Expires: "), expiry)
		}
		fmt.Fprintf(&b, "%s %s", s.Label.Render("Storage: "), v.Storage)
	}
	if v.Verification != "" {
		fmt.Fprintf(&b, "\n%s %s", s.Error.Render("Verification failed:"), v.Verification)
	}
	_, err := fmt.Fprintln(w, s.Box.Render(b.String()))
	return err
}

type userView session.User

func (v userView) WriteText(w io.Writer, s ux.Styles) error {
	tw := ux.NewTable(w)
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("ID"), v.ID)
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Username"), v.Username)
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Name"), v.Name)
	if v.Email != "" {
		fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Email"), v.Email)
	}
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Roles"), joinOrDash(v.Roles))
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Permissions"), joinOrDash(v.Permissions))
	fmt.Fprintf(tw, "%s\t%t\n", s.Label.Render("Active"), v.Active)
	return tw.Flush()
}

type customerPage los.Page[los.Customer]

func (p customerPage) WriteText(w io.Writer, s ux.Styles) error {
	if len(p.Content) == 0 {
		_, err := fmt.Fprintln(w, s.Muted.Render("No customers found."))
		return err
	}
	tw := ux.NewTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tNATIONAL ID")
	for _, c := range p.Content {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.FullName, c.Email, c.Phone, c.NationalID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writePageFooter(w, s, p.Page, p.TotalPages, p.TotalElements)
}

type customerView los.Customer

func (c customerView) WriteText(w io.Writer, s ux.Styles) error {
	tw := ux.NewTable(w)
	rows := [][2]string{
		{"ID", c.ID.String()},
		{"Name", c.FullName},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"National ID", c.NationalID},
		{"Date of birth", c.DateOfBirth},
		{"Address", c.Address},
		{"Employment", c.EmploymentStatus},
		{"Monthly income", formatAmount(c.MonthlyIncome)},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render(r[0]), r[1])
	}
	return tw.Flush()
}

type loanPage los.Page[los.LoanApplication]

func (p loanPage) WriteText(w io.Writer, s ux.Styles) error {
	if len(p.Content) == 0 {
		_, err := fmt.Fprintln(w, s.Muted.Render("No loan applications found."))
		return err
	}
	tw := ux.NewTable(w)
	fmt.Fprintln(tw, "ID\tNUMBER\tCUSTOMER\tTYPE\tAMOUNT\tTERM\tSTATUS")
	for _, l := range p.Content {
		customer := l.CustomerName
		if customer == "" {
			customer = l.CustomerID.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dm\t%s\n",
			l.ID, dash(l.ApplicationNumber), customer, l.LoanType,
			formatAmount(l.Amount), l.TermMonths, s.Status(l.Status).Render(l.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writePageFooter(w, s, p.Page, p.TotalPages, p.TotalElements)
}

type loanView los.LoanApplication

func (l loanView) WriteText(w io.Writer, s ux.Styles) error {
	tw := ux.NewTable(w)
	rows := [][2]string{
		{"ID", l.ID.String()},
		{"Number", l.ApplicationNumber},
		{"Customer", strings.TrimSpace(l.CustomerName + " (" + l.CustomerID.String() + ")")},
		{"Type", l.LoanType},
		{"Amount", formatAmount(l.Amount)},
		{"Term", fmt.Sprintf("%d months", l.TermMonths)},
		{"Purpose", l.Purpose},
		{"Status", s.Status(l.Status).Render(l.Status)},
		{"Submitted", l.SubmittedAt},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render(r[0]), r[1])
	}
	return tw.Flush()
}

type dashboardView los.DashboardSummary

func (d dashboardView) WriteText(w io.Writer, s ux.Styles) error {
	fmt.Fprintln(w, s.Title.Render("LOS dashboard"))
	tw := ux.NewTable(w)
	fmt.Fprintf(tw, "%s\t%d\n", s.Label.Render("Customers"), d.TotalCustomers)
	fmt.Fprintf(tw, "%s\t%d\n", s.Label.Render("Applications"), d.TotalApplications)
	fmt.Fprintf(tw, "%s\t%d\n", s.Label.Render("  pending"), d.PendingApplications)
	fmt.Fprintf(tw, "%s\t%d\n", s.Label.Render("  approved"), d.ApprovedApplications)
	fmt.Fprintf(tw, "%s\t%d\n", s.Label.Render("  rejected"), d.RejectedApplications)
	fmt.Fprintf(tw, "%s\t%s\n", s.Label.Render("Total loan amount"), formatAmount(d.TotalLoanAmount))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.ApplicationsByStatus) == 0 {
		return nil
	}
	statuses := make([]string, 0, len(d.ApplicationsByStatus))
	for st := range d.ApplicationsByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)

	fmt.Fprintln(w)
	tw = ux.NewTable(w)
	fmt.Fprintln(tw, "STATUS\tCOUNT")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%d\n", s.Status(st).Render(st), d.ApplicationsByStatus[st])
	}
	return tw.Flush()
}

type healthView health.Report

func (h healthView) WriteText(w io.Writer, s ux.Styles) error {
	overall := string(h.Status)
	fmt.Fprintf(w, "%s %s\n", s.Title.Render("Overall:"), s.Status(overall).Render(overall))

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := ux.NewTable(w)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tLATENCY\tMESSAGE")
	for _, name := range names {
		r := h.Checks[name]
		st := string(r.Status)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, s.Status(st).Render(st),
			r.Latency.Round(time.Millisecond), r.Message)
	}
	return tw.Flush()
}

func writePageFooter(w io.Writer, s ux.Styles, page, totalPages, total int) error {
	if totalPages == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, s.Muted.Render(
		fmt.Sprintf("Page %d of %d (%d total)", page+1, totalPages, total)))
	return err
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
