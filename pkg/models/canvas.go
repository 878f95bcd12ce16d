package models

import "time"

// HealthStatus buckets an account health score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthAtRisk   HealthStatus = "at_risk"
	HealthCritical HealthStatus = "critical"
)

// HealthStatusFor maps a 0-100 health score to its bucket.
func HealthStatusFor(score int) HealthStatus {
	switch {
	case score >= 70:
		return HealthHealthy
	case score >= 40:
		return HealthAtRisk
	default:
		return HealthCritical
	}
}

// Account is a row of the account canvas.
type Account struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Segment     string    `json:"segment"`
	Industry    string    `json:"industry"`
	ARR         float64   `json:"arr"`
	HealthScore int       `json:"health_score"`
	RenewalDate time.Time `json:"renewal_date"`
	Owner       string    `json:"owner"`
}

// HealthRecord is an account projected for the health page.
type HealthRecord struct {
	AccountID   string       `json:"account_id"`
	AccountName string       `json:"account_name"`
	Segment     string       `json:"segment"`
	HealthScore int          `json:"health_score"`
	Status      HealthStatus `json:"status"`
	RenewalDate time.Time    `json:"renewal_date"`
}

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// TicketPriority ranks a support ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Ticket is a support ticket row.
type Ticket struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	AccountID   string         `json:"account_id"`
	AccountName string         `json:"account_name"`
	Subject     string         `json:"subject"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	OpenedAt    time.Time      `json:"opened_at"`
}

// MeetingStatus is the state of a customer meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Meeting is a customer meeting row.
type Meeting struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	AccountID   string        `json:"account_id"`
	AccountName string        `json:"account_name"`
	Title       string        `json:"title"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Status      MeetingStatus `json:"status"`
}

// Variance explains the gap between projected and collected revenue.
type Variance struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// RevenueEntry is one account-month of projected versus collected revenue.
// Month is formatted as YYYY-MM.
type RevenueEntry struct {
	TenantID    string    `json:"tenant_id"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
	Month       string    `json:"month"`
	Projected   float64   `json:"projected"`
	Collected   float64   `json:"collected"`
	Variance    *Variance `json:"variance,omitempty"`
}
