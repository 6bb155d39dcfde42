package models

import "time"

// CredentialStatus is the lifecycle state of an API key.
type CredentialStatus string

const (
	CredentialStatusActive  CredentialStatus = "active"
	CredentialStatusRevoked CredentialStatus = "revoked"
)

// Credential key prefixes. The prefix encodes the environment so a leaked
// sandbox key cannot be mistaken for a production one. Both prefixes share
// the same length; validation slices the first PrefixLength bytes of a
// presented key to narrow the candidate set.
const (
	CredentialPrefixSandbox    = "fk_test_"
	CredentialPrefixProduction = "fk_live_"
	CredentialPrefixLength     = len(CredentialPrefixSandbox)
)

// Credential is a bearer API key scoped to an environment. The plaintext is
// returned once at creation and never persisted; only the bcrypt hash is
// stored.
type Credential struct {
	ID              string           `json:"id"`
	OrgID           string           `json:"org_id"`
	EnvironmentID   string           `json:"environment_id"`
	Prefix          string           `json:"prefix"`
	Hash            string           `json:"-"`
	Name            string           `json:"name"`
	Scopes          []string         `json:"scopes,omitempty"`
	IPAllowlist     []string         `json:"ip_allowlist,omitempty"`
	RateLimitPerMin int              `json:"rate_limit_per_min"`
	Status          CredentialStatus `json:"status"`
	LastUsedAt      *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
