package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	GetTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*Transaction, error)

	// Behavior profile read (derived from the user's transaction history)
	GetBehaviorProfile(ctx context.Context, tenantID string, userID string) (*BehaviorProfile, error)

	// Analysis results
	SaveAnalysis(ctx context.Context, tenantID string, analysis *RiskAnalysis) error
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*RiskAnalysis, error)

	// Alerts
	SaveAlert(ctx context.Context, tenantID string, alert *Alert) error
	ListAlertsByUser(ctx context.Context, tenantID string, userID string, limit int) ([]*Alert, error)

	// Audit trail (append-only)
	SaveAuditEntries(ctx context.Context, tenantID string, entries []*AuditEntry) error
	ListAuditEntries(ctx context.Context, tenantID string, txID string) ([]*AuditEntry, error)

	// Blacklist
	IsBlacklisted(ctx context.Context, tenantID string, identity string) (bool, error)
	SaveBlacklistEntry(ctx context.Context, tenantID string, entry *BlacklistEntry) error
	ListBlacklistEntries(ctx context.Context, tenantID string) ([]*BlacklistEntry, error)
	DeleteBlacklistEntry(ctx context.Context, tenantID string, id string) error

	// Supplemental rule configurations
	SaveRuleConfig(ctx context.Context, tenantID string, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// BlacklistEntry marks a counterpart identity as globally blocked.
type BlacklistEntry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Identity  string    `json:"identity"` // phone number or merchant name
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
