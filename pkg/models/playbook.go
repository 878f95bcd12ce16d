package models

import "time"

// Playbook is a named template of phases applied to an account.
type Playbook struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Category    Category  `json:"category" yaml:"category"`
	Description string    `json:"description" yaml:"description"`
	Phases      []Phase   `json:"phases" yaml:"phases"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
