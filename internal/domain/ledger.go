/**
 * @description
 * This file defines the core domain models for the payments ledger. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and event payloads
 *   ensures clear separation of concerns and type safety.
 * - Amounts and balances are `decimal.Decimal` values backed by Postgres numeric
 *   columns, which avoids floating-point inaccuracies with financial data.
 * - Owners and accounts are addressed by their slug name; payments are addressed
 *   by their integer primary key, which is also the pagination key.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner represents a party that holds one or more accounts.
// This struct maps directly to the `owners` table in the database.
type Owner struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Account represents a single-currency balance held by an owner.
// This struct maps directly to the `accounts` table in the database.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	OwnerID   int64           `json:"-"`
	Owner     string          `json:"owner"` // owner name, resolved on read
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Payment represents one money movement between at most two accounts. A payment
// with no source account is an external deposit; one with no destination account
// is an external withdrawal. This struct maps directly to the `payments` table.
//
// The integer ID is assigned by a database sequence and therefore increases
// monotonically with creation order. The cursor pagination engine depends on that
// property; ID must never be reused or rewritten.
type Payment struct {
	ID            int64           `json:"id"`
	FromAccountID *int64          `json:"-"`
	ToAccountID   *int64          `json:"-"`
	FromAccount   *string         `json:"from_account"` // account name, null for external deposits
	ToAccount     *string         `json:"to_account"`   // account name, null for external withdrawals
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Time          time.Time       `json:"time"`
	UniqueID      string          `json:"unique_id"`
	Confirmed     bool            `json:"confirmed"`

	// Balance snapshots captured from the locked account rows at the moment the
	// payment settles. Written exactly once and kept out of API responses.
	SourceBalanceBefore      *decimal.Decimal `json:"-"`
	DestinationBalanceBefore *decimal.Decimal `json:"-"`
}

// CreateOwnerRequest is the DTO for registering a new owner.
type CreateOwnerRequest struct {
	Name string `json:"name"`
}

// RenameOwnerRequest is the DTO for renaming an existing owner.
type RenameOwnerRequest struct {
	Name string `json:"name"`
}

// CreateAccountRequest is the DTO for opening a new account under an owner.
type CreateAccountRequest struct {
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Currency string `json:"currency"`
}

// CreatePaymentRequest is the DTO for incoming payment creation API requests.
//
// When UniqueID is supplied by the caller the payment settles immediately inside
// the creation transaction. When it is absent the server generates a UUIDv4 and
// the payment is created unconfirmed, awaiting explicit confirmation.
type CreatePaymentRequest struct {
	FromAccount *string         `json:"from_account"`
	ToAccount   *string         `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	UniqueID    *string         `json:"unique_id"`
}

// ConfirmPaymentRequest is the DTO for the payment confirmation request body.
// The only accepted value is {"confirmed": true}.
type ConfirmPaymentRequest struct {
	Confirmed *bool `json:"confirmed"`
}

// ConfirmStatus discriminates the outcomes of a confirmation attempt.
type ConfirmStatus int

const (
	// ConfirmApplied means this call performed the settlement.
	ConfirmApplied ConfirmStatus = iota
	// ConfirmAlreadyDone means the payment had already been confirmed earlier.
	// It is a successful no-op, not an error.
	ConfirmAlreadyDone
)

// ConfirmResult is the discriminated result of a confirmation attempt. Rejections
// are reported separately as errors; a ConfirmResult is only produced when the
// payment is (now or already) confirmed.
type ConfirmResult struct {
	Status  ConfirmStatus
	Payment *Payment
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Owner      string
	Currency   string
	BalanceLTE *decimal.Decimal
	BalanceGTE *decimal.Decimal
}

// PaymentFilter narrows payment history listings. Account filters match the
// account name on the given side; owner filters match any account belonging to
// the named owner on that side.
type PaymentFilter struct {
	FromAccount string
	ToAccount   string
	FromOwner   string
	ToOwner     string
	Confirmed   *bool
	TimeGTE     *time.Time
	TimeLTE     *time.Time
}

// PaymentPage is one page of payment history in display order (newest first),
// together with the cursors for re-fetching this page and navigating older
// (next) and newer (prev) records. Nil cursors mean the link is not available.
type PaymentPage struct {
	Records []Payment
	This    *string
	Next    *string
	Prev    *string
}

// PaymentEvent is the payload published to the message broker when a payment is
// created or settled.
type PaymentEvent struct {
	EventType   string          `json:"event_type"`
	PaymentID   int64           `json:"payment_id"`
	UniqueID    string          `json:"unique_id"`
	FromAccount *string         `json:"from_account"`
	ToAccount   *string         `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Confirmed   bool            `json:"confirmed"`
	Time        time.Time       `json:"time"`
}
