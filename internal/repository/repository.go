// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	parseErrors, _ := json.Marshal(tx.ParseErrors)

	query := `
		INSERT INTO transactions (
			id, tenant_id, user_id, provider, type, amount,
			counterpart_name, counterpart_number,
			balance, fee, tax, levy, reference,
			tx_date, tx_time, raw_text, parse_errors,
			effective_at, received_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.UserID, tx.Provider, tx.Type,
		nullFloat(tx.Amount),
		tx.CounterpartName, tx.CounterpartNumber,
		nullFloat(tx.Balance), nullFloat(tx.Fee), nullFloat(tx.Tax), nullFloat(tx.Levy),
		tx.Reference,
		tx.Date, tx.Time, tx.RawText, string(parseErrors),
		tx.EffectiveTime(), tx.ReceivedAt, tx.CreatedAt,
	)
	return err
}

const transactionColumns = `id, tenant_id, user_id, provider, type, amount,
	   counterpart_name, counterpart_number,
	   balance, fee, tax, levy, reference,
	   tx_date, tx_time, raw_text, parse_errors,
	   received_at, created_at`

func scanTransaction(scan func(dest ...any) error) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, balance, fee, tax, levy sql.NullFloat64
	var parseErrors string

	err := scan(
		&tx.ID, &tx.TenantID, &tx.UserID, &tx.Provider, &tx.Type, &amount,
		&tx.CounterpartName, &tx.CounterpartNumber,
		&balance, &fee, &tax, &levy, &tx.Reference,
		&tx.Date, &tx.Time, &tx.RawText, &parseErrors,
		&tx.ReceivedAt, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount = floatPtr(amount)
	tx.Balance = floatPtr(balance)
	tx.Fee = floatPtr(fee)
	tx.Tax = floatPtr(tax)
	tx.Levy = floatPtr(levy)

	if parseErrors != "" {
		json.Unmarshal([]byte(parseErrors), &tx.ParseErrors)
	}
	return &tx, nil
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransactionsByUser retrieves a user's transactions since a point
// in time, newest first. The window filters on the effective time so
// extracted message timestamps, not ingest times, drive velocity.
func (r *SQLRepository) GetTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = ? AND user_id = ? AND effective_at >= ?
		ORDER BY effective_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// GetBehaviorProfile derives a user's profile from their persisted
// history. Informational message types never carry an amount, so the
// aggregate naturally covers only money movements. The average is
// withheld until the user has MinProfileTransactions of history.
func (r *SQLRepository) GetBehaviorProfile(ctx context.Context, tenantID string, userID string) (*domain.BehaviorProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(amount), AVG(amount)
		FROM transactions
		WHERE tenant_id = ? AND user_id = ? AND amount IS NOT NULL
	`

	var count int
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, userID).Scan(&count, &avg)
	if err != nil {
		return nil, err
	}

	profile := &domain.BehaviorProfile{
		UserID:           userID,
		TransactionCount: count,
	}
	// Too little history to call anything anomalous.
	if count >= domain.MinProfileTransactions {
		profile.AverageAmount = floatPtr(avg)
	}
	return profile, nil
}

// SaveAnalysis stores a risk analysis with tenant isolation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.RiskAnalysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(analysis.Factors)
	actions, _ := json.Marshal(analysis.RecommendedActions)
	layerResults, _ := json.Marshal(analysis.LayerResults)
	metadata, _ := json.Marshal(analysis.Metadata)

	shouldAlert := 0
	if analysis.ShouldAlert {
		shouldAlert = 1
	}

	query := `
		INSERT INTO analyses (
			id, tenant_id, tx_id, user_id, total_score, risk_level,
			should_alert, factors, recommended_actions, layer_results,
			timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, analysis.TxID, analysis.UserID,
		analysis.TotalScore, analysis.Level, shouldAlert,
		string(factors), string(actions), string(layerResults),
		analysis.Timestamp, string(metadata),
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.RiskAnalysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, user_id, total_score, risk_level,
			   should_alert, factors, recommended_actions, layer_results,
			   timestamp, metadata
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var analysis domain.RiskAnalysis
	var shouldAlert int
	var factors, actions, layerResults, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&analysis.ID, &analysis.TenantID, &analysis.TxID, &analysis.UserID,
		&analysis.TotalScore, &analysis.Level, &shouldAlert,
		&factors, &actions, &layerResults,
		&analysis.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	analysis.ShouldAlert = shouldAlert == 1
	json.Unmarshal([]byte(factors), &analysis.Factors)
	json.Unmarshal([]byte(actions), &analysis.RecommendedActions)
	json.Unmarshal([]byte(layerResults), &analysis.LayerResults)
	json.Unmarshal([]byte(metadata), &analysis.Metadata)

	return &analysis, nil
}

// SaveAlert stores an alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(alert.Factors)

	query := `
		INSERT INTO alerts (
			id, tenant_id, tx_id, analysis_id, user_id, level, score, factors, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.TxID, alert.AnalysisID, alert.UserID,
		alert.Level, alert.Score, string(factors), alert.CreatedAt,
	)
	return err
}

// ListAlertsByUser retrieves a user's alerts, newest first.
func (r *SQLRepository) ListAlertsByUser(ctx context.Context, tenantID string, userID string, limit int) ([]*domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, tx_id, analysis_id, user_id, level, score, factors, created_at
		FROM alerts
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var factors string

		if err := rows.Scan(
			&alert.ID, &alert.TenantID, &alert.TxID, &alert.AnalysisID, &alert.UserID,
			&alert.Level, &alert.Score, &factors, &alert.CreatedAt,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(factors), &alert.Factors)
		alerts = append(alerts, &alert)
	}
	return alerts, rows.Err()
}

// SaveAuditEntries appends audit entries in a single transaction so a
// partially-written trail never appears.
func (r *SQLRepository) SaveAuditEntries(ctx context.Context, tenantID string, entries []*domain.AuditEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(entries) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO audit_entries (
			id, tenant_id, tx_id, layer, layer_name, status, score, timestamp, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, entry := range entries {
		detail, _ := json.Marshal(entry.Detail)
		if _, err := dbTx.ExecContext(ctx, query,
			entry.ID, tenantID, entry.TxID, entry.Layer, entry.LayerName,
			entry.Status, entry.Score, entry.Timestamp, string(detail),
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// ListAuditEntries retrieves a transaction's audit trail in layer order.
func (r *SQLRepository) ListAuditEntries(ctx context.Context, tenantID string, txID string) ([]*domain.AuditEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, layer, layer_name, status, score, timestamp, detail
		FROM audit_entries
		WHERE tenant_id = ? AND tx_id = ?
		ORDER BY layer
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var detail string

		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.TxID, &entry.Layer, &entry.LayerName,
			&entry.Status, &entry.Score, &entry.Timestamp, &detail,
		); err != nil {
			return nil, err
		}

		if detail != "" && detail != "null" {
			d, err := domain.UnmarshalAuditDetail(entry.Layer, []byte(detail))
			if err != nil {
				return nil, fmt.Errorf("failed to parse audit detail for %s: %w", entry.ID, err)
			}
			entry.Detail = d
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// IsBlacklisted reports whether an identity is blocked. Matching is
// case-insensitive so merchant names compare reliably.
func (r *SQLRepository) IsBlacklisted(ctx context.Context, tenantID string, identity string) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM blacklist
		WHERE tenant_id = ? AND LOWER(identity) = ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, strings.ToLower(identity)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveBlacklistEntry stores a blacklist entry with tenant isolation.
func (r *SQLRepository) SaveBlacklistEntry(ctx context.Context, tenantID string, entry *domain.BlacklistEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if entry.Identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO blacklist (id, tenant_id, identity, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, identity) DO UPDATE SET
			reason = excluded.reason
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, tenantID, strings.ToLower(entry.Identity), entry.Reason, entry.CreatedAt,
	)
	return err
}

// ListBlacklistEntries retrieves a tenant's blacklist.
func (r *SQLRepository) ListBlacklistEntries(ctx context.Context, tenantID string) ([]*domain.BlacklistEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, identity, reason, created_at
		FROM blacklist
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.BlacklistEntry
	for rows.Next() {
		var entry domain.BlacklistEntry
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.Identity, &entry.Reason, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteBlacklistEntry removes a blacklist entry.
func (r *SQLRepository) DeleteBlacklistEntry(ctx context.Context, tenantID string, id string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM blacklist WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRuleConfig stores a rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, penalty, factor, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			penalty = excluded.penalty,
			factor = excluded.factor,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Penalty, rule.Factor, enabled,
		now, now,
	)
	return err
}

// ListRuleConfigs retrieves all active rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, penalty, factor, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Penalty, &cfg.Factor, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
