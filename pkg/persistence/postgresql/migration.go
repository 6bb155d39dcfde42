package postgresql

// migrations returns the versioned schema migrations for the PostgreSQL
// backend. New versions append; existing entries never change.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS flows (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				definition JSONB NOT NULL DEFAULT '{"nodes":[],"edges":[]}',
				status TEXT NOT NULL DEFAULT 'draft',
				version INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_flows_org_id ON flows (org_id);
			CREATE INDEX IF NOT EXISTS idx_flows_org_status ON flows (org_id, status);

			CREATE TABLE IF NOT EXISTS runs (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL,
				org_id TEXT NOT NULL,
				triggered_by TEXT NOT NULL DEFAULT '',
				trigger_type TEXT NOT NULL,
				input_payload JSONB,
				status TEXT NOT NULL DEFAULT 'queued',
				total_cost INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_runs_flow_id ON runs (flow_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_runs_org_id ON runs (org_id);

			CREATE TABLE IF NOT EXISTS run_nodes (
				run_id UUID NOT NULL,
				node_id TEXT NOT NULL,
				node_type TEXT NOT NULL,
				input JSONB,
				output JSONB,
				status TEXT NOT NULL DEFAULT 'pending',
				cost INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (run_id, node_id)
			);

			CREATE TABLE IF NOT EXISTS usage_entries (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				run_id UUID NOT NULL,
				node_type TEXT NOT NULL,
				provider TEXT NOT NULL DEFAULT '',
				cost INTEGER NOT NULL DEFAULT 0,
				latency_ms BIGINT NOT NULL DEFAULT 0,
				asset_ref TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_usage_entries_org_id ON usage_entries (org_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS environments (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (org_id, name)
			);

			CREATE TABLE IF NOT EXISTS credentials (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				environment_id UUID NOT NULL,
				prefix TEXT NOT NULL,
				hash TEXT NOT NULL,
				name TEXT NOT NULL,
				scopes JSONB NOT NULL DEFAULT '[]',
				ip_allowlist JSONB NOT NULL DEFAULT '[]',
				rate_limit_per_min INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				last_used_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_credentials_prefix ON credentials (prefix, status);
			CREATE INDEX IF NOT EXISTS idx_credentials_org_id ON credentials (org_id);

			CREATE TABLE IF NOT EXISTS webhooks (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				flow_id UUID NOT NULL,
				environment_id UUID NOT NULL,
				url_slug TEXT NOT NULL UNIQUE,
				secret TEXT NOT NULL,
				payload_schema JSONB,
				status TEXT NOT NULL DEFAULT 'active',
				last_called_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_webhooks_org_id ON webhooks (org_id);
		`,
	}
}
