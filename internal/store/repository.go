/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger. By defining an interface, we decouple
 * the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * Methods taking a `pgx.Tx` are transaction-scoped primitives: the service layer
 * opens one transaction per ledger operation through WithTx and performs every
 * lock, check and mutation of that operation inside it. Locking is always an
 * explicit lock-and-fetch call at the point the locks are needed; locked rows are
 * plain values that cannot go stale silently.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: Transaction handle type.
 * - github.com/shopspring/decimal: Exact balance arithmetic.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PaymentWindow describes one page-sized slice of payment history: an optional
// comparator predicate on the payment id, the scan direction, the number of rows
// to fetch and the history filters.
type PaymentWindow struct {
	Cmp    string // one of "", "<", "<=", ">", ">="
	Key    int64  // ignored when Cmp is ""
	Desc   bool   // true scans newest-first
	Limit  int
	Filter domain.PaymentFilter
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Transaction control
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error

	// Owner methods
	CreateOwner(ctx context.Context, name string) (*domain.Owner, error)
	GetOwnerByName(ctx context.Context, name string) (*domain.Owner, error)
	ListOwners(ctx context.Context) ([]domain.Owner, error)
	RenameOwner(ctx context.Context, name, newName string) (*domain.Owner, error)
	LockOwnerByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Owner, error)
	DeleteOwnerByID(ctx context.Context, tx pgx.Tx, id int64) error

	// Account methods
	CreateAccount(ctx context.Context, name string, ownerID int64, currency string) (*domain.Account, error)
	GetAccountByName(ctx context.Context, name string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
	LockAccountByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Account, error)
	LockAccountsByName(ctx context.Context, tx pgx.Tx, names []string) ([]domain.Account, error)
	LockAccountsByID(ctx context.Context, tx pgx.Tx, ids []int64) ([]domain.Account, error)
	LockAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) ([]domain.Account, error)
	UpdateAccountBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error
	DeleteAccountByID(ctx context.Context, tx pgx.Tx, id int64) error
	DeleteAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) error

	// Payment methods
	InsertPayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
	GetPaymentByID(ctx context.Context, id int64) (*domain.Payment, error)
	LockPaymentByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Payment, error)
	MarkPaymentConfirmed(ctx context.Context, tx pgx.Tx, id int64, sourceBefore, destBefore *decimal.Decimal) error
	ListPayments(ctx context.Context, window PaymentWindow) ([]domain.Payment, error)
	DeleteUnconfirmedPaymentsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
