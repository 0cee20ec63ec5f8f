// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/domain"
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

// SaveCampaign inserts or replaces a campaign with tenant isolation.
func (r *SQLRepository) SaveCampaign(ctx context.Context, tenantID string, campaign *domain.DiscountSet) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if campaign.ID == "" {
		return fmt.Errorf("%w: campaign id is required", ErrInvalidInput)
	}

	config, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to encode campaign: %w", err)
	}

	query := `
		INSERT INTO campaigns (
			id, tenant_id, name, is_active, is_default,
			valid_from, valid_until, config, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active,
			is_default = excluded.is_default,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			config = excluded.config,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		campaign.ID, tenantID, campaign.Name,
		boolToInt(campaign.IsActive), boolToInt(campaign.IsDefault),
		campaign.ValidFrom, campaign.ValidUntil,
		string(config), campaign.CreatedAt, campaign.UpdatedAt,
	)
	return err
}

// GetCampaign retrieves a campaign by ID with tenant isolation.
func (r *SQLRepository) GetCampaign(ctx context.Context, tenantID string, campaignID string) (*domain.DiscountSet, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT config, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = ? AND id = ?
	`

	var config string
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, campaignID).Scan(
		&config, &createdAt, &updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeCampaign(config, createdAt, updatedAt)
}

// ListCampaigns retrieves all campaigns for a tenant.
func (r *SQLRepository) ListCampaigns(ctx context.Context, tenantID string) ([]*domain.DiscountSet, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT config, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*domain.DiscountSet
	for rows.Next() {
		var config string
		var createdAt, updatedAt time.Time

		if err := rows.Scan(&config, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		campaign, err := decodeCampaign(config, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}

	return campaigns, rows.Err()
}

// DeleteCampaign removes a campaign with tenant isolation.
func (r *SQLRepository) DeleteCampaign(ctx context.Context, tenantID string, campaignID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM campaigns WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, campaignID)
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

// SaveQuote stores a computed quote with tenant isolation.
func (r *SQLRepository) SaveQuote(ctx context.Context, tenantID string, quote *domain.Quote) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if quote.ID == "" {
		return fmt.Errorf("%w: quote id is required", ErrInvalidInput)
	}

	cart, err := json.Marshal(quote.Cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	result, err := json.Marshal(quote.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		INSERT INTO quotes (
			id, tenant_id, campaign_id, campaign_name, status,
			cart, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		quote.ID, tenantID, quote.CampaignID, quote.CampaignName,
		string(quote.Status), string(cart), string(result), quote.CreatedAt,
	)
	return err
}

// GetQuote retrieves a quote by ID with tenant isolation.
func (r *SQLRepository) GetQuote(ctx context.Context, tenantID string, quoteID string) (*domain.Quote, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, campaign_id, campaign_name, status,
			   cart, result, created_at
		FROM quotes
		WHERE tenant_id = ? AND id = ?
	`

	var quote domain.Quote
	var status, cart, result string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, quoteID).Scan(
		&quote.ID, &quote.TenantID, &quote.CampaignID, &quote.CampaignName,
		&status, &cart, &result, &quote.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	quote.Status = domain.QuoteStatus(status)
	if err := json.Unmarshal([]byte(cart), &quote.Cart); err != nil {
		return nil, fmt.Errorf("failed to parse stored cart: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &quote.Result); err != nil {
		return nil, fmt.Errorf("failed to parse stored result: %w", err)
	}

	return &quote, nil
}

// MarkQuoteCommitted transitions a quote from pending to committed.
func (r *SQLRepository) MarkQuoteCommitted(ctx context.Context, tenantID string, quoteID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE quotes
		SET status = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(domain.QuoteCommitted), tenantID, quoteID, string(domain.QuotePending))
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

// CountQuotesByCampaign counts quotes attributed to a campaign since a
// point in time. Backs the campaign stats endpoint.
func (r *SQLRepository) CountQuotesByCampaign(ctx context.Context, tenantID string, campaignID string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM quotes
		WHERE tenant_id = ? AND campaign_id = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, campaignID, since).Scan(&count)
	return count, err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// decodeCampaign restores a campaign from its JSON document, with the
// column timestamps taking precedence over whatever the document holds.
func decodeCampaign(config string, createdAt, updatedAt time.Time) (*domain.DiscountSet, error) {
	var campaign domain.DiscountSet
	if err := json.Unmarshal([]byte(config), &campaign); err != nil {
		return nil, fmt.Errorf("failed to parse stored campaign: %w", err)
	}
	campaign.CreatedAt = createdAt
	campaign.UpdatedAt = updatedAt
	return &campaign, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
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
