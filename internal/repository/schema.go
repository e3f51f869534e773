package repository

// Schema definitions for the SikaGuard database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL,
    counterpart_name TEXT,
    counterpart_number TEXT,
    balance REAL,
    fee REAL,
    tax REAL,
    levy REAL,
    reference TEXT,
    tx_date TEXT,
    tx_time TEXT,
    raw_text TEXT NOT NULL,
    parse_errors TEXT,
    effective_at TIMESTAMP NOT NULL,
    received_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_effective ON transactions(tenant_id, user_id, effective_at);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    total_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    should_alert INTEGER NOT NULL DEFAULT 0,
    factors TEXT,
    recommended_actions TEXT,
    layer_results TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analyses_tx ON analyses(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_analyses_level ON analyses(tenant_id, risk_level);
`

const schemaAuditEntries = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    layer INTEGER NOT NULL,
    layer_name TEXT NOT NULL,
    status TEXT NOT NULL,
    score INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_tx ON audit_entries(tenant_id, tx_id, layer);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    analysis_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    level TEXT NOT NULL,
    score INTEGER NOT NULL,
    factors TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(tenant_id, user_id, created_at);
`

const schemaBlacklist = `
CREATE TABLE IF NOT EXISTS blacklist (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    identity TEXT NOT NULL,
    reason TEXT,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (tenant_id, identity)
);

CREATE INDEX IF NOT EXISTS idx_blacklist_identity ON blacklist(tenant_id, identity);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    penalty INTEGER NOT NULL DEFAULT 0,
    factor TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaAnalyses,
		schemaAuditEntries,
		schemaAlerts,
		schemaBlacklist,
		schemaRuleConfigs,
	}
}
