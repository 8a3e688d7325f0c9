package store

import (
	"context"
	"errors"

	"khaidee/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("duplicate product code")
	ErrInvalidInput  = errors.New("invalid input")
)

// Repository persists the product catalog and the append-only sales ledger.
// The catalog is replaced wholesale on every mutation: a single register owns
// it, so writes never need row-level merging.
type Repository interface {
	LoadProducts(ctx context.Context) ([]domain.Product, error)
	ReplaceProducts(ctx context.Context, products []domain.Product) error

	// ListSales returns the ledger newest-first.
	ListSales(ctx context.Context) ([]domain.Sale, error)

	// CommitSale appends the sale and replaces the catalog in one atomic step.
	// Either both are visible afterwards or neither is.
	CommitSale(ctx context.Context, sale domain.Sale, products []domain.Product) error

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
