/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for owners, accounts, and payments.
 *
 * Locking discipline: every Lock* method issues `SELECT ... FOR UPDATE` ordered by
 * ascending id, so concurrent settlements that touch overlapping account sets
 * always acquire row locks in the same order and cannot deadlock each other.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact numeric balances.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrDuplicateName     = errors.New("name is already in use")
	ErrDuplicateUniqueID = errors.New("unique id is already in use")
	ErrOwnerHasAccounts  = errors.New("owner still has accounts")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithTx runs fn inside a single database transaction. The transaction is rolled
// back unless fn returns nil and the commit succeeds.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// --- Owner methods ---

// CreateOwner inserts a new owner row.
func (r *PostgresRepository) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	o := domain.Owner{Name: name}
	err := r.db.QueryRow(ctx,
		"INSERT INTO owners (name) VALUES ($1) RETURNING id, created_at",
		name,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}
	return &o, nil
}

// GetOwnerByName fetches one owner by its slug name.
func (r *PostgresRepository) GetOwnerByName(ctx context.Context, name string) (*domain.Owner, error) {
	var o domain.Owner
	err := r.db.QueryRow(ctx,
		"SELECT id, name, created_at FROM owners WHERE name = $1",
		name,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return &o, nil
}

// ListOwners returns all owners ordered by name.
func (r *PostgresRepository) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	rows, err := r.db.Query(ctx, "SELECT id, name, created_at FROM owners ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	owners := []domain.Owner{}
	for rows.Next() {
		var o domain.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read owners: %w", err)
	}
	return owners, nil
}

// RenameOwner changes an owner's slug name.
func (r *PostgresRepository) RenameOwner(ctx context.Context, name, newName string) (*domain.Owner, error) {
	var o domain.Owner
	err := r.db.QueryRow(ctx,
		"UPDATE owners SET name = $2 WHERE name = $1 RETURNING id, name, created_at",
		name, newName,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to rename owner: %w", err)
	}
	return &o, nil
}

// LockOwnerByName fetches one owner under an exclusive row lock.
func (r *PostgresRepository) LockOwnerByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Owner, error) {
	var o domain.Owner
	err := tx.QueryRow(ctx,
		"SELECT id, name, created_at FROM owners WHERE name = $1 FOR UPDATE",
		name,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to lock owner: %w", err)
	}
	return &o, nil
}

// DeleteOwnerByID removes an owner row. The accounts FK is a backstop here: if a
// racing insert attached a fresh account to the owner, the delete fails with
// ErrOwnerHasAccounts and the enclosing transaction rolls back.
func (r *PostgresRepository) DeleteOwnerByID(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, "DELETE FROM owners WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOwnerHasAccounts
		}
		return fmt.Errorf("failed to delete owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOwnerNotFound
	}
	return nil
}

// --- Account methods ---

// CreateAccount inserts a new account row with a zero balance.
func (r *PostgresRepository) CreateAccount(ctx context.Context, name string, ownerID int64, currency string) (*domain.Account, error) {
	a := domain.Account{Name: name, OwnerID: ownerID, Currency: currency, Balance: decimal.Zero}
	err := r.db.QueryRow(ctx,
		"INSERT INTO accounts (name, owner_id, currency) VALUES ($1, $2, $3) RETURNING id, balance, created_at",
		name, ownerID, currency,
	).Scan(&a.ID, &a.Balance, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		if isForeignKeyViolation(err) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &a, nil
}

// GetAccountByName fetches one account with its owner's name resolved.
func (r *PostgresRepository) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx,
		`SELECT a.id, a.name, a.owner_id, o.name, a.currency, a.balance, a.created_at
		 FROM accounts a JOIN owners o ON a.owner_id = o.id
		 WHERE a.name = $1`,
		name,
	).Scan(&a.ID, &a.Name, &a.OwnerID, &a.Owner, &a.Currency, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns accounts matching the filter, ordered by name.
func (r *PostgresRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	conds := []string{}
	args := []interface{}{}
	add := func(format string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if filter.Owner != "" {
		add("o.name = $%d", filter.Owner)
	}
	if filter.Currency != "" {
		add("a.currency = $%d", filter.Currency)
	}
	if filter.BalanceLTE != nil {
		add("a.balance <= $%d", *filter.BalanceLTE)
	}
	if filter.BalanceGTE != nil {
		add("a.balance >= $%d", *filter.BalanceGTE)
	}

	query := `SELECT a.id, a.name, a.owner_id, o.name, a.currency, a.balance, a.created_at
		FROM accounts a JOIN owners o ON a.owner_id = o.id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.Owner, &a.Currency, &a.Balance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

// LockAccountByName fetches one account under an exclusive row lock.
func (r *PostgresRepository) LockAccountByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Account, error) {
	var a domain.Account
	err := tx.QueryRow(ctx,
		"SELECT id, name, owner_id, currency, balance, created_at FROM accounts WHERE name = $1 FOR UPDATE",
		name,
	).Scan(&a.ID, &a.Name, &a.OwnerID, &a.Currency, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) lockAccounts(ctx context.Context, tx pgx.Tx, cond string, arg interface{}) ([]domain.Account, error) {
	rows, err := tx.Query(ctx,
		"SELECT id, name, owner_id, currency, balance, created_at FROM accounts WHERE "+cond+" ORDER BY id FOR UPDATE",
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.Currency, &a.Balance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locked accounts: %w", err)
	}
	return accounts, nil
}

// LockAccountsByName fetches the named accounts under exclusive row locks, in
// ascending id order. Every requested name must exist.
func (r *PostgresRepository) LockAccountsByName(ctx context.Context, tx pgx.Tx, names []string) ([]domain.Account, error) {
	uniq := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}

	accounts, err := r.lockAccounts(ctx, tx, "name = ANY($1)", uniq)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(uniq) {
		found := make(map[string]struct{}, len(accounts))
		for _, a := range accounts {
			found[a.Name] = struct{}{}
		}
		for _, n := range uniq {
			if _, ok := found[n]; !ok {
				return nil, fmt.Errorf("account %q: %w", n, ErrAccountNotFound)
			}
		}
	}
	return accounts, nil
}

// LockAccountsByID fetches accounts by id under exclusive row locks, in
// ascending id order. Every requested id must exist.
func (r *PostgresRepository) LockAccountsByID(ctx context.Context, tx pgx.Tx, ids []int64) ([]domain.Account, error) {
	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	accounts, err := r.lockAccounts(ctx, tx, "id = ANY($1)", uniq)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(uniq) {
		found := make(map[int64]struct{}, len(accounts))
		for _, a := range accounts {
			found[a.ID] = struct{}{}
		}
		for _, id := range uniq {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("account id %d: %w", id, ErrAccountNotFound)
			}
		}
	}
	return accounts, nil
}

// LockAccountsByOwnerID fetches all of an owner's accounts under exclusive row
// locks, in ascending id order.
func (r *PostgresRepository) LockAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) ([]domain.Account, error) {
	return r.lockAccounts(ctx, tx, "owner_id = $1", ownerID)
}

// UpdateAccountBalance writes an absolute balance computed by the service layer
// from the locked row it previously fetched in the same transaction.
func (r *PostgresRepository) UpdateAccountBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error {
	tag, err := tx.Exec(ctx, "UPDATE accounts SET balance = $2 WHERE id = $1", id, balance)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccountByID removes one account row.
func (r *PostgresRepository) DeleteAccountByID(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccountsByOwnerID removes all accounts of one owner. The caller holds
// locks on every row and has verified the balances are zero.
func (r *PostgresRepository) DeleteAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) error {
	if _, err := tx.Exec(ctx, "DELETE FROM accounts WHERE owner_id = $1", ownerID); err != nil {
		return fmt.Errorf("failed to delete owner accounts: %w", err)
	}
	return nil
}

// --- Payment methods ---

const paymentColumns = `p.id, p.from_account_id, p.to_account_id, fa.name, ta.name,
	p.amount, p.currency, p.time, p.unique_id, p.confirmed,
	p.source_balance_before, p.destination_balance_before`

const paymentJoins = ` FROM payments p
	LEFT JOIN accounts fa ON p.from_account_id = fa.id
	LEFT JOIN accounts ta ON p.to_account_id = ta.id
	LEFT JOIN owners fow ON fa.owner_id = fow.id
	LEFT JOIN owners tow ON ta.owner_id = tow.id`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var src, dst decimal.NullDecimal
	err := row.Scan(
		&p.ID, &p.FromAccountID, &p.ToAccountID, &p.FromAccount, &p.ToAccount,
		&p.Amount, &p.Currency, &p.Time, &p.UniqueID, &p.Confirmed,
		&src, &dst,
	)
	if err != nil {
		return nil, err
	}
	p.SourceBalanceBefore = fromNullDecimal(src)
	p.DestinationBalanceBefore = fromNullDecimal(dst)
	return &p, nil
}

// InsertPayment writes a new payment row and fills in the generated id and
// timestamp. The id comes from a sequence, so creation order and id order agree.
func (r *PostgresRepository) InsertPayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO payments
			(from_account_id, to_account_id, amount, currency, unique_id, confirmed,
			 source_balance_before, destination_balance_before)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, time`,
		p.FromAccountID, p.ToAccountID, p.Amount, p.Currency, p.UniqueID, p.Confirmed,
		toNullDecimal(p.SourceBalanceBefore), toNullDecimal(p.DestinationBalanceBefore),
	).Scan(&p.ID, &p.Time)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUniqueID
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByID fetches one payment with both account names resolved.
func (r *PostgresRepository) GetPaymentByID(ctx context.Context, id int64) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		"SELECT "+paymentColumns+paymentJoins+" WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// LockPaymentByID fetches one payment under an exclusive row lock. Only the
// payments row itself is locked; account names are not resolved here.
func (r *PostgresRepository) LockPaymentByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Payment, error) {
	var p domain.Payment
	var src, dst decimal.NullDecimal
	err := tx.QueryRow(ctx,
		`SELECT id, from_account_id, to_account_id, amount, currency, time, unique_id, confirmed,
			source_balance_before, destination_balance_before
		 FROM payments WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(
		&p.ID, &p.FromAccountID, &p.ToAccountID, &p.Amount, &p.Currency, &p.Time,
		&p.UniqueID, &p.Confirmed, &src, &dst,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	p.SourceBalanceBefore = fromNullDecimal(src)
	p.DestinationBalanceBefore = fromNullDecimal(dst)
	return &p, nil
}

// MarkPaymentConfirmed flips the payment to confirmed and records the balance
// snapshots taken from the locked account rows.
func (r *PostgresRepository) MarkPaymentConfirmed(ctx context.Context, tx pgx.Tx, id int64, sourceBefore, destBefore *decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		`UPDATE payments
		 SET confirmed = true, source_balance_before = $2, destination_balance_before = $3
		 WHERE id = $1`,
		id, toNullDecimal(sourceBefore), toNullDecimal(destBefore),
	)
	if err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// buildPaymentListQuery renders a payment window into the SQL statement and its
// positional arguments. Comparators outside the cursor grammar are rejected
// before any SQL is assembled.
func buildPaymentListQuery(window PaymentWindow) (string, []interface{}, error) {
	conds := []string{}
	args := []interface{}{}
	add := func(format string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	switch window.Cmp {
	case "":
	case "<", "<=", ">", ">=":
		add("p.id "+window.Cmp+" $%d", window.Key)
	default:
		return "", nil, fmt.Errorf("unsupported cursor comparator %q", window.Cmp)
	}

	f := window.Filter
	if f.FromAccount != "" {
		add("fa.name = $%d", f.FromAccount)
	}
	if f.ToAccount != "" {
		add("ta.name = $%d", f.ToAccount)
	}
	if f.FromOwner != "" {
		add("fow.name = $%d", f.FromOwner)
	}
	if f.ToOwner != "" {
		add("tow.name = $%d", f.ToOwner)
	}
	if f.Confirmed != nil {
		add("p.confirmed = $%d", *f.Confirmed)
	}
	if f.TimeGTE != nil {
		add("p.time >= $%d", *f.TimeGTE)
	}
	if f.TimeLTE != nil {
		add("p.time <= $%d", *f.TimeLTE)
	}

	query := "SELECT " + paymentColumns + paymentJoins
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	dir := "ASC"
	if window.Desc {
		dir = "DESC"
	}
	args = append(args, window.Limit)
	query += fmt.Sprintf(" ORDER BY p.id %s LIMIT $%d", dir, len(args))
	return query, args, nil
}

// ListPayments fetches one window of payment history. The window's comparator
// and direction come from the pagination engine; filters narrow the history by
// account, owner, confirmation state and time range.
func (r *PostgresRepository) ListPayments(ctx context.Context, window PaymentWindow) ([]domain.Payment, error) {
	query, args, err := buildPaymentListQuery(window)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}
	return payments, nil
}

// DeleteUnconfirmedPaymentsBefore removes unconfirmed payments created before the
// cutoff. Confirmed payments are never deleted. Returns the number of rows removed.
func (r *PostgresRepository) DeleteUnconfirmedPaymentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM payments WHERE confirmed = false AND time < $1",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep unconfirmed payments: %w", err)
	}
	return tag.RowsAffected(), nil
}
