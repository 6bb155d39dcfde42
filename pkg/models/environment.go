package models

import "time"

// EnvironmentName is the isolation boundary name. Exactly one environment of
// each name exists per organization.
type EnvironmentName string

const (
	EnvironmentSandbox    EnvironmentName = "sandbox"
	EnvironmentProduction EnvironmentName = "production"
)

// Environment scopes credentials and webhooks to test or live traffic.
type Environment struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	Name      EnvironmentName `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
}
