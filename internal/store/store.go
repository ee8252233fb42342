package store

import (
	"context"
	"errors"

	"snackstand/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrRegisterMissing   = errors.New("cash register not initialized")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AssignCategory(ctx context.Context, productIDs []string, category string) (int, error)

	// ApplySettlement persists the sale, removes the stock deltas, and moves
	// the register in one atomic step. Stock is re-checked at apply time;
	// ErrInsufficientStock leaves nothing changed.
	ApplySettlement(ctx context.Context, settlement domain.Settlement) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	GetRegister(ctx context.Context) (*domain.CashRegister, error)
	// SetRegister writes the register's current amount, and the starting
	// amount too when starting is non-nil.
	SetRegister(ctx context.Context, currentCents int64, startingCents *int64, updatedBy string) (*domain.CashRegister, error)

	// ResetMonth deletes every sale and zeroes the register atomically,
	// returning the number of sales removed.
	ResetMonth(ctx context.Context, updatedBy string) (int, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, employeeID string, password string) error
}
