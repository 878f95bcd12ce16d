package models

import (
	"time"
)

// Tenant is a customer organization; every workflow, account and onboarding
// session is scoped to one.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
