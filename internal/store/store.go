// Package store defines persistence for monitored products, settings and the
// audit log. Implementations guarantee at-least atomic read-modify-write
// semantics per call but no cross-call transactionality; the engine tolerates
// another writer interleaving between its load and save for a different
// product.
package store

import (
	"context"
	"errors"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateURL is returned when adding a product whose URL is already
	// monitored. URLs are unique across all products.
	ErrDuplicateURL = errors.New("url already monitored")
)

// Store is the persistence boundary consumed by the engine and the API.
type Store interface {
	LoadProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductByURL(ctx context.Context, url string) (*models.Product, error)

	// AddProduct inserts a new product, enforcing URL uniqueness.
	AddProduct(ctx context.Context, p models.Product) error
	// SaveProduct upserts an existing product by ID.
	SaveProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	LoadSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error

	// AppendLog appends an audit entry; implementations enforce the global
	// cap by dropping the oldest entries.
	AppendLog(ctx context.Context, e models.LogEntry) error
	RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error)

	// ReplaceAll swaps stored state wholesale with the bundle contents.
	ReplaceAll(ctx context.Context, b *models.Bundle) error
}
