package models

import "time"

// UsageEntry is an append-only record of one capability invocation. Entries
// are never updated or deleted; billing reads them downstream.
type UsageEntry struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	RunID     string    `json:"run_id"`
	NodeType  NodeType  `json:"node_type"`
	Provider  string    `json:"provider"`
	Cost      int       `json:"cost"`
	LatencyMs int64     `json:"latency_ms"`
	AssetRef  string    `json:"asset_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
