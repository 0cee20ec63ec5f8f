package repository

// Schema definitions for the POS discount service.
// Compatible with both SQLite and PostgreSQL.

// schemaCampaigns stores campaigns with their rule configuration as a
// JSON document. Rules are always read and written as a whole campaign,
// so there is no value in normalizing the slots into columns.
const schemaCampaigns = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    is_default INTEGER NOT NULL DEFAULT 0,
    valid_from TIMESTAMP,
    valid_until TIMESTAMP,
    config TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_tenant ON campaigns(tenant_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_active ON campaigns(tenant_id, is_active);
`

const schemaQuotes = `
CREATE TABLE IF NOT EXISTS quotes (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    campaign_id TEXT,
    campaign_name TEXT,
    status TEXT NOT NULL,
    cart TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_quotes_tenant ON quotes(tenant_id);
CREATE INDEX IF NOT EXISTS idx_quotes_campaign ON quotes(tenant_id, campaign_id);
CREATE INDEX IF NOT EXISTS idx_quotes_created ON quotes(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCampaigns,
		schemaQuotes,
	}
}
