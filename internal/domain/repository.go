package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-store isolation.
type Repository interface {
	// Campaign operations
	SaveCampaign(ctx context.Context, tenantID string, campaign *DiscountSet) error
	GetCampaign(ctx context.Context, tenantID string, campaignID string) (*DiscountSet, error)
	ListCampaigns(ctx context.Context, tenantID string) ([]*DiscountSet, error)
	DeleteCampaign(ctx context.Context, tenantID string, campaignID string) error

	// Quote operations
	SaveQuote(ctx context.Context, tenantID string, quote *Quote) error
	GetQuote(ctx context.Context, tenantID string, quoteID string) (*Quote, error)
	MarkQuoteCommitted(ctx context.Context, tenantID string, quoteID string) error
	CountQuotesByCampaign(ctx context.Context, tenantID string, campaignID string, since time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
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
