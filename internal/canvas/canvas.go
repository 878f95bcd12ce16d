// Package canvas implements the filter predicates and projections behind the
// account canvas pages: accounts, health, revenue, tickets, meetings and the
// cross-workflow task list.
package canvas

import (
	"strings"
	"time"

	"clynto/backend/pkg/models"
)

// DateRange is an inclusive time window. Zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside r.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

func containsFold(s, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
}

func matchAccount(id, name, filter string) bool {
	return filter == "" || filter == id || strings.EqualFold(filter, name)
}

// AccountFilter selects rows of the accounts table.
type AccountFilter struct {
	Search  string
	Segment string
	Health  models.HealthStatus
	Renewal DateRange
}

// FilterAccounts applies f to accounts, keeping order.
func FilterAccounts(accounts []models.Account, f AccountFilter) []models.Account {
	out := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if !containsFold(a.Name, f.Search) {
			continue
		}
		if f.Segment != "" && !strings.EqualFold(a.Segment, f.Segment) {
			continue
		}
		if f.Health != "" && models.HealthStatusFor(a.HealthScore) != f.Health {
			continue
		}
		if !f.Renewal.Contains(a.RenewalDate) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// HealthRecords projects accounts for the health page, optionally keeping
// only one health status.
func HealthRecords(accounts []models.Account, status models.HealthStatus) []models.HealthRecord {
	out := make([]models.HealthRecord, 0, len(accounts))
	for _, a := range accounts {
		s := models.HealthStatusFor(a.HealthScore)
		if status != "" && s != status {
			continue
		}
		out = append(out, models.HealthRecord{
			AccountID:   a.ID,
			AccountName: a.Name,
			Segment:     a.Segment,
			HealthScore: a.HealthScore,
			Status:      s,
			RenewalDate: a.RenewalDate,
		})
	}
	return out
}

// TicketFilter selects support tickets.
type TicketFilter struct {
	Account  string
	Status   models.TicketStatus
	Priority models.TicketPriority
	Opened   DateRange
}

// FilterTickets applies f to tickets.
func FilterTickets(tickets []models.Ticket, f TicketFilter) []models.Ticket {
	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !matchAccount(t.AccountID, t.AccountName, f.Account) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if !f.Opened.Contains(t.OpenedAt) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// MeetingFilter selects customer meetings.
type MeetingFilter struct {
	Account string
	Status  models.MeetingStatus
	When    DateRange
}

// FilterMeetings applies f to meetings.
func FilterMeetings(meetings []models.Meeting, f MeetingFilter) []models.Meeting {
	out := make([]models.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if !matchAccount(m.AccountID, m.AccountName, f.Account) {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if !f.When.Contains(m.ScheduledAt) {
			continue
		}
		out = append(out, m)
	}
	return out
}
