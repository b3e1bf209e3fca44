package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/drdaeman/payments-api-demo/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.events = append(p.events, publishedEvent{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}

// ledgerRepoStub is an in-memory Repository. Transactions are a pass-through;
// service-level rejections happen before any mutating call, so the stub never
// needs to roll anything back.
type ledgerRepoStub struct {
	store.Repository

	nextOwnerID   int64
	nextAccountID int64
	nextPaymentID int64

	owners   map[string]*domain.Owner
	accounts map[string]*domain.Account
	payments map[int64]*domain.Payment

	balanceWrites int
}

func newLedgerRepoStub() *ledgerRepoStub {
	return &ledgerRepoStub{
		owners:   map[string]*domain.Owner{},
		accounts: map[string]*domain.Account{},
		payments: map[int64]*domain.Payment{},
	}
}

func (s *ledgerRepoStub) seedOwner(name string) *domain.Owner {
	s.nextOwnerID++
	o := &domain.Owner{ID: s.nextOwnerID, Name: name, CreatedAt: time.Now().UTC()}
	s.owners[name] = o
	return o
}

func (s *ledgerRepoStub) seedAccount(owner *domain.Owner, name, currency, balance string) *domain.Account {
	s.nextAccountID++
	a := &domain.Account{
		ID:        s.nextAccountID,
		Name:      name,
		OwnerID:   owner.ID,
		Owner:     owner.Name,
		Currency:  currency,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[name] = a
	return a
}

func (s *ledgerRepoStub) seedPayment(from, to *domain.Account, amount, currency string, confirmed bool) *domain.Payment {
	s.nextPaymentID++
	p := &domain.Payment{
		ID:        s.nextPaymentID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		Time:      time.Now().UTC(),
		UniqueID:  uuid.NewString(),
		Confirmed: confirmed,
	}
	if from != nil {
		p.FromAccountID = &from.ID
		p.FromAccount = &from.Name
	}
	if to != nil {
		p.ToAccountID = &to.ID
		p.ToAccount = &to.Name
	}
	s.payments[p.ID] = p
	return p
}

func (s *ledgerRepoStub) balanceOf(name string) decimal.Decimal {
	return s.accounts[name].Balance
}

func (s *ledgerRepoStub) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (s *ledgerRepoStub) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	if _, ok := s.owners[name]; ok {
		return nil, store.ErrDuplicateName
	}
	o := s.seedOwner(name)
	out := *o
	return &out, nil
}

func (s *ledgerRepoStub) GetOwnerByName(ctx context.Context, name string) (*domain.Owner, error) {
	o, ok := s.owners[name]
	if !ok {
		return nil, store.ErrOwnerNotFound
	}
	out := *o
	return &out, nil
}

func (s *ledgerRepoStub) LockOwnerByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Owner, error) {
	return s.GetOwnerByName(ctx, name)
}

func (s *ledgerRepoStub) DeleteOwnerByID(ctx context.Context, tx pgx.Tx, id int64) error {
	for name, o := range s.owners {
		if o.ID == id {
			delete(s.owners, name)
			return nil
		}
	}
	return store.ErrOwnerNotFound
}

func (s *ledgerRepoStub) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	a, ok := s.accounts[name]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

func (s *ledgerRepoStub) LockAccountByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Account, error) {
	return s.GetAccountByName(ctx, name)
}

func (s *ledgerRepoStub) LockAccountsByName(ctx context.Context, tx pgx.Tx, names []string) ([]domain.Account, error) {
	seen := map[string]struct{}{}
	var out []domain.Account
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		a, ok := s.accounts[n]
		if !ok {
			return nil, fmt.Errorf("account %q: %w", n, store.ErrAccountNotFound)
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ledgerRepoStub) LockAccountsByID(ctx context.Context, tx pgx.Tx, ids []int64) ([]domain.Account, error) {
	byID := map[int64]*domain.Account{}
	for _, a := range s.accounts {
		byID[a.ID] = a
	}
	seen := map[int64]struct{}{}
	var out []domain.Account
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, store.ErrAccountNotFound)
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ledgerRepoStub) LockAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ledgerRepoStub) UpdateAccountBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error {
	for _, a := range s.accounts {
		if a.ID == id {
			a.Balance = balance
			s.balanceWrites++
			return nil
		}
	}
	return store.ErrAccountNotFound
}

func (s *ledgerRepoStub) DeleteAccountByID(ctx context.Context, tx pgx.Tx, id int64) error {
	for name, a := range s.accounts {
		if a.ID == id {
			delete(s.accounts, name)
			return nil
		}
	}
	return store.ErrAccountNotFound
}

func (s *ledgerRepoStub) DeleteAccountsByOwnerID(ctx context.Context, tx pgx.Tx, ownerID int64) error {
	for name, a := range s.accounts {
		if a.OwnerID == ownerID {
			delete(s.accounts, name)
		}
	}
	return nil
}

func (s *ledgerRepoStub) InsertPayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	for _, existing := range s.payments {
		if existing.UniqueID == p.UniqueID {
			return store.ErrDuplicateUniqueID
		}
	}
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	if p.Time.IsZero() {
		p.Time = time.Now().UTC()
	}
	stored := *p
	s.payments[p.ID] = &stored
	return nil
}

func (s *ledgerRepoStub) GetPaymentByID(ctx context.Context, id int64) (*domain.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	out := *p
	return &out, nil
}

func (s *ledgerRepoStub) LockPaymentByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Payment, error) {
	return s.GetPaymentByID(ctx, id)
}

func (s *ledgerRepoStub) MarkPaymentConfirmed(ctx context.Context, tx pgx.Tx, id int64, sourceBefore, destBefore *decimal.Decimal) error {
	p, ok := s.payments[id]
	if !ok {
		return store.ErrPaymentNotFound
	}
	p.Confirmed = true
	p.SourceBalanceBefore = sourceBefore
	p.DestinationBalanceBefore = destBefore
	return nil
}

func (s *ledgerRepoStub) ListPayments(ctx context.Context, w store.PaymentWindow) ([]domain.Payment, error) {
	ids := make([]int64, 0, len(s.payments))
	for id := range s.payments {
		switch w.Cmp {
		case "":
		case "<":
			if id >= w.Key {
				continue
			}
		case "<=":
			if id > w.Key {
				continue
			}
		case ">":
			if id <= w.Key {
				continue
			}
		case ">=":
			if id < w.Key {
				continue
			}
		default:
			return nil, fmt.Errorf("unsupported comparator %q", w.Cmp)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if w.Desc {
			return ids[i] > ids[j]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > w.Limit {
		ids = ids[:w.Limit]
	}
	out := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.payments[id])
	}
	return out, nil
}

func newTestService(repo *ledgerRepoStub) (*Service, *publisherStub) {
	pub := &publisherStub{}
	currencies := domain.NewCurrencyTable([]string{"USD", "EUR", "PHP"})
	return NewService(repo, currencies, pub, 100, 1000), pub
}

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func TestCreatePayment_TwoPhaseSettlesOnConfirm(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	repo.seedAccount(owner, "wallet", "PHP", "500")
	repo.seedAccount(owner, "merchant", "PHP", "0")
	svc, pub := newTestService(repo)

	created, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("merchant"),
		Amount:      decimal.RequireFromString("100"),
		Currency:    "PHP",
	})
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if created.Confirmed {
		t.Fatal("expected payment without unique_id to start unconfirmed")
	}
	if _, err := uuid.Parse(created.UniqueID); err != nil {
		t.Fatalf("expected server-generated UUID unique_id, got %q: %v", created.UniqueID, err)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected wallet untouched before confirmation, got %s", repo.balanceOf("wallet"))
	}
	if len(pub.events) != 1 || pub.events[0].routingKey != EventPaymentCreated {
		t.Fatalf("expected a single %s event, got %+v", EventPaymentCreated, pub.events)
	}

	result, err := svc.ConfirmPayment(context.Background(), created.ID, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	if err != nil {
		t.Fatalf("ConfirmPayment returned error: %v", err)
	}
	if result.Status != domain.ConfirmApplied {
		t.Fatalf("expected first confirmation to apply, got status %v", result.Status)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("400")) {
		t.Fatalf("expected wallet at 400 after settlement, got %s", repo.balanceOf("wallet"))
	}
	if !repo.balanceOf("merchant").Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected merchant at 100 after settlement, got %s", repo.balanceOf("merchant"))
	}
	stored := repo.payments[created.ID]
	if !stored.Confirmed {
		t.Fatal("expected stored payment to be confirmed")
	}
	if stored.SourceBalanceBefore == nil || !stored.SourceBalanceBefore.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected source snapshot 500, got %v", stored.SourceBalanceBefore)
	}
	if stored.DestinationBalanceBefore == nil || !stored.DestinationBalanceBefore.Equal(decimal.RequireFromString("0")) {
		t.Fatalf("expected destination snapshot 0, got %v", stored.DestinationBalanceBefore)
	}
	if result.Payment.FromAccount == nil || *result.Payment.FromAccount != "wallet" {
		t.Fatalf("expected confirmed payment to carry the source account name, got %v", result.Payment.FromAccount)
	}
	if len(pub.events) != 2 || pub.events[1].routingKey != EventPaymentSettled {
		t.Fatalf("expected a %s event after confirmation, got %+v", EventPaymentSettled, pub.events)
	}

	again, err := svc.ConfirmPayment(context.Background(), created.ID, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	if err != nil {
		t.Fatalf("repeat ConfirmPayment returned error: %v", err)
	}
	if again.Status != domain.ConfirmAlreadyDone {
		t.Fatalf("expected repeat confirmation to be a no-op, got status %v", again.Status)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("400")) {
		t.Fatalf("expected balances unchanged on repeat confirmation, got wallet %s", repo.balanceOf("wallet"))
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected no event for repeat confirmation, got %+v", pub.events)
	}
}

func TestCreatePayment_UniqueIDSettlesImmediately(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	repo.seedAccount(owner, "wallet", "USD", "250")
	repo.seedAccount(owner, "savings", "USD", "10")
	svc, pub := newTestService(repo)

	created, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("savings"),
		Amount:      decimal.RequireFromString("25.50"),
		Currency:    "usd",
		UniqueID:    strPtr("order-42"),
	})
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if !created.Confirmed {
		t.Fatal("expected payment with unique_id to settle immediately")
	}
	if created.Currency != "USD" {
		t.Fatalf("expected currency normalized to USD, got %q", created.Currency)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("224.50")) {
		t.Fatalf("expected wallet at 224.50, got %s", repo.balanceOf("wallet"))
	}
	if !repo.balanceOf("savings").Equal(decimal.RequireFromString("35.50")) {
		t.Fatalf("expected savings at 35.50, got %s", repo.balanceOf("savings"))
	}
	if created.SourceBalanceBefore == nil || !created.SourceBalanceBefore.Equal(decimal.RequireFromString("250")) {
		t.Fatalf("expected source snapshot 250, got %v", created.SourceBalanceBefore)
	}
	if len(pub.events) != 1 || pub.events[0].routingKey != EventPaymentSettled {
		t.Fatalf("expected a single %s event, got %+v", EventPaymentSettled, pub.events)
	}

	// Replaying the same idempotency token must not move money again.
	writesBefore := repo.balanceWrites
	_, err = svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("savings"),
		Amount:      decimal.RequireFromString("25.50"),
		Currency:    "USD",
		UniqueID:    strPtr("order-42"),
	})
	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError for replayed unique_id, got %v", err)
	}
	if repo.balanceWrites != writesBefore {
		t.Fatal("expected no balance writes for replayed unique_id")
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("224.50")) {
		t.Fatalf("expected wallet unchanged after replay, got %s", repo.balanceOf("wallet"))
	}
}

func TestCreatePayment_RejectsOverdraft(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	repo.seedAccount(owner, "wallet", "PHP", "50")
	repo.seedAccount(owner, "merchant", "PHP", "0")
	svc, pub := newTestService(repo)

	_, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("merchant"),
		Amount:      decimal.RequireFromString("100"),
		Currency:    "PHP",
		UniqueID:    strPtr("overdraft-1"),
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != "Source account balance is too low for this payment" {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected wallet untouched, got %s", repo.balanceOf("wallet"))
	}
	if len(repo.payments) != 0 {
		t.Fatal("expected no payment recorded for rejected overdraft")
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events for rejected payment, got %+v", pub.events)
	}
}

func TestCreatePayment_RejectsCurrencyMismatch(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	repo.seedAccount(owner, "wallet", "USD", "100")
	repo.seedAccount(owner, "peso", "PHP", "0")
	svc, _ := newTestService(repo)

	_, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("peso"),
		Amount:      decimal.RequireFromString("10"),
		Currency:    "USD",
		UniqueID:    strPtr("mismatch-1"),
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != "Accounts and payment must all use the same currency" {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
}

func TestCreatePayment_RejectsUnsupportedCurrency(t *testing.T) {
	repo := newLedgerRepoStub()
	svc, _ := newTestService(repo)

	_, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		ToAccount: strPtr("wallet"),
		Amount:    decimal.RequireFromString("10"),
		Currency:  "XXX",
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != `currency "XXX" is not supported` {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
}

func TestCreatePayment_RequiresAnAccount(t *testing.T) {
	repo := newLedgerRepoStub()
	svc, _ := newTestService(repo)

	_, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		Amount:   decimal.RequireFromString("10"),
		Currency: "USD",
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != "At least one account (from_account or to_account) is required" {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
}

func TestCreatePayment_RejectsNonPositiveAmount(t *testing.T) {
	repo := newLedgerRepoStub()
	svc, _ := newTestService(repo)

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
			ToAccount: strPtr("wallet"),
			Amount:    decimal.RequireFromString(amount),
			Currency:  "USD",
		})
		var validationErr *domain.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("amount %s: expected ValidationError, got %v", amount, err)
		}
	}
}

func TestCreatePayment_OneSidedMovements(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("treasury")
	repo.seedAccount(owner, "vault", "EUR", "1000")
	svc, _ := newTestService(repo)

	// Destination only: money appears from outside the ledger.
	minted, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		ToAccount: strPtr("vault"),
		Amount:    decimal.RequireFromString("500"),
		Currency:  "EUR",
		UniqueID:  strPtr("mint-1"),
	})
	if err != nil {
		t.Fatalf("destination-only payment returned error: %v", err)
	}
	if !repo.balanceOf("vault").Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("expected vault at 1500 after inflow, got %s", repo.balanceOf("vault"))
	}
	if minted.SourceBalanceBefore != nil {
		t.Fatalf("expected no source snapshot for destination-only payment, got %v", minted.SourceBalanceBefore)
	}
	if minted.DestinationBalanceBefore == nil || !minted.DestinationBalanceBefore.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected destination snapshot 1000, got %v", minted.DestinationBalanceBefore)
	}

	// Source only: money leaves the ledger.
	burned, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("vault"),
		Amount:      decimal.RequireFromString("200"),
		Currency:    "EUR",
		UniqueID:    strPtr("burn-1"),
	})
	if err != nil {
		t.Fatalf("source-only payment returned error: %v", err)
	}
	if !repo.balanceOf("vault").Equal(decimal.RequireFromString("1300")) {
		t.Fatalf("expected vault at 1300 after outflow, got %s", repo.balanceOf("vault"))
	}
	if burned.DestinationBalanceBefore != nil {
		t.Fatalf("expected no destination snapshot for source-only payment, got %v", burned.DestinationBalanceBefore)
	}
	if burned.SourceBalanceBefore == nil || !burned.SourceBalanceBefore.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("expected source snapshot 1500, got %v", burned.SourceBalanceBefore)
	}
}

func TestCreatePayment_SelfPaymentNetsToZero(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	repo.seedAccount(owner, "wallet", "USD", "100")
	svc, _ := newTestService(repo)

	created, err := svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		FromAccount: strPtr("wallet"),
		ToAccount:   strPtr("wallet"),
		Amount:      decimal.RequireFromString("40"),
		Currency:    "USD",
		UniqueID:    strPtr("self-1"),
	})
	if err != nil {
		t.Fatalf("self payment returned error: %v", err)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected self payment to leave the balance unchanged, got %s", repo.balanceOf("wallet"))
	}
	if created.SourceBalanceBefore == nil || !created.SourceBalanceBefore.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected source snapshot 100, got %v", created.SourceBalanceBefore)
	}
	if created.DestinationBalanceBefore == nil || !created.DestinationBalanceBefore.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected destination snapshot 100, got %v", created.DestinationBalanceBefore)
	}
}

func TestConfirmPayment_RejectsAnythingButTrue(t *testing.T) {
	repo := newLedgerRepoStub()
	svc, _ := newTestService(repo)

	for name, req := range map[string]domain.ConfirmPaymentRequest{
		"missing": {},
		"false":   {Confirmed: boolPtr(false)},
	} {
		_, err := svc.ConfirmPayment(context.Background(), 1, req)
		var validationErr *domain.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
		if validationErr.Reason != "The only valid value for 'confirmed' is 'true'" {
			t.Fatalf("%s: unexpected rejection reason: %q", name, validationErr.Reason)
		}
	}
}

func TestConfirmPayment_UnknownPayment(t *testing.T) {
	repo := newLedgerRepoStub()
	svc, _ := newTestService(repo)

	_, err := svc.ConfirmPayment(context.Background(), 404, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	if !errors.Is(err, store.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestConfirmPayment_OverdraftLeavesPaymentRetryable(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	from := repo.seedAccount(owner, "wallet", "PHP", "30")
	to := repo.seedAccount(owner, "merchant", "PHP", "0")
	p := repo.seedPayment(from, to, "100", "PHP", false)
	svc, pub := newTestService(repo)

	_, err := svc.ConfirmPayment(context.Background(), p.ID, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != "Source account balance is too low for this payment" {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
	if repo.payments[p.ID].Confirmed {
		t.Fatal("expected payment to stay unconfirmed after rejected confirmation")
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events for rejected confirmation, got %+v", pub.events)
	}

	// Fund the account and retry: the same payment must now settle.
	repo.accounts["wallet"].Balance = decimal.RequireFromString("150")
	result, err := svc.ConfirmPayment(context.Background(), p.ID, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	if err != nil {
		t.Fatalf("retried confirmation returned error: %v", err)
	}
	if result.Status != domain.ConfirmApplied {
		t.Fatalf("expected retried confirmation to apply, got status %v", result.Status)
	}
	if !repo.balanceOf("wallet").Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected wallet at 50 after retry, got %s", repo.balanceOf("wallet"))
	}
}

func TestConfirmPayment_AccountDeletedSinceCreation(t *testing.T) {
	repo := newLedgerRepoStub()
	owner := repo.seedOwner("alice")
	from := repo.seedAccount(owner, "wallet", "PHP", "500")
	to := repo.seedAccount(owner, "gone", "PHP", "0")
	p := repo.seedPayment(from, to, "100", "PHP", false)
	delete(repo.accounts, "gone")
	svc, _ := newTestService(repo)

	_, err := svc.ConfirmPayment(context.Background(), p.ID, domain.ConfirmPaymentRequest{Confirmed: boolPtr(true)})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Reason != "payment references an account that no longer exists" {
		t.Fatalf("unexpected rejection reason: %q", validationErr.Reason)
	}
	if repo.payments[p.ID].Confirmed {
		t.Fatal("expected payment to stay unconfirmed")
	}
}
