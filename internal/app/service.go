/**
 * @description
 * This file contains the core business logic for the payments ledger. The `Service`
 * struct orchestrates all money movement operations, coordinating between the
 * database repository and the message broker.
 *
 * Key features:
 * - Implements the payment state machine: immediate settlement when the caller
 *   supplies an idempotency token, and the two-phase create-then-confirm flow
 *   when it does not.
 * - Every operation runs in exactly one database transaction; all validation
 *   happens against rows locked inside that transaction, so a rejected payment
 *   leaves no partial state behind.
 * - Confirmation is idempotent: the first call settles, later calls report a
 *   distinguished already-confirmed outcome and change nothing.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, log, sort, strings: Standard Go libraries.
 * - github.com/google/uuid: Server-side idempotency token generation.
 * - github.com/shopspring/decimal: Exact balance arithmetic.
 * - internal/domain, internal/store: For domain models and data access.
 * - internal/metrics, pkg/pagination, pkg/rabbitmq: Supporting infrastructure.
 */

package app

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/drdaeman/payments-api-demo/internal/metrics"
	"github.com/drdaeman/payments-api-demo/internal/store"
	"github.com/drdaeman/payments-api-demo/pkg/pagination"
	"github.com/drdaeman/payments-api-demo/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Event types published to the message broker.
const (
	EventPaymentCreated = "payment.created"
	EventPaymentSettled = "payment.settled"
)

// Service provides the core business logic for the ledger.
type Service struct {
	repo            store.Repository
	currencies      domain.CurrencyTable
	eventProducer   rabbitmq.Publisher
	pageSizeDefault int
	pageSizeMax     int
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, currencies domain.CurrencyTable, producer rabbitmq.Publisher, pageSizeDefault, pageSizeMax int) *Service {
	return &Service{
		repo:            repo,
		currencies:      currencies,
		eventProducer:   producer,
		pageSizeDefault: pageSizeDefault,
		pageSizeMax:     pageSizeMax,
	}
}

// accountName normalizes an optional account reference: blank means absent.
func accountName(ref *string) *string {
	if ref == nil {
		return nil
	}
	name := strings.TrimSpace(*ref)
	if name == "" {
		return nil
	}
	return &name
}

// CreatePayment registers a new payment.
//
// With a caller-supplied unique_id the payment settles inside this call: the
// named accounts are locked, the source balance is checked, balances move and
// the payment is stored confirmed with its balance snapshots. Without one, the
// server generates a UUIDv4 token and stores the payment unconfirmed; no
// balance is touched until confirmation.
func (s *Service) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	if req.Amount.Sign() <= 0 {
		return nil, domain.Validationf("amount must be a positive decimal")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.Validationf("currency is required")
	}
	if !s.currencies.Contains(currency) {
		return nil, domain.Validationf("currency %q is not supported", currency)
	}

	fromName := accountName(req.FromAccount)
	toName := accountName(req.ToAccount)
	if fromName == nil && toName == nil {
		return nil, domain.Validationf("At least one account (from_account or to_account) is required")
	}

	immediate := false
	var uniqueID string
	if req.UniqueID != nil && strings.TrimSpace(*req.UniqueID) != "" {
		if err := domain.ValidateUniqueID(*req.UniqueID); err != nil {
			return nil, err
		}
		uniqueID = *req.UniqueID
		immediate = true
	} else {
		uniqueID = uuid.NewString()
	}

	names := []string{}
	if fromName != nil {
		names = append(names, *fromName)
	}
	if toName != nil {
		names = append(names, *toName)
	}

	var created *domain.Payment
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		accounts, err := s.repo.LockAccountsByName(ctx, tx, names)
		if err != nil {
			return err
		}
		byName := make(map[string]*domain.Account, len(accounts))
		for i := range accounts {
			byName[accounts[i].Name] = &accounts[i]
		}
		for _, a := range accounts {
			if a.Currency != currency {
				metrics.RecordSettlementRejection("currency_mismatch")
				return domain.Validationf("Accounts and payment must all use the same currency")
			}
		}

		p := &domain.Payment{
			FromAccount: fromName,
			ToAccount:   toName,
			Amount:      req.Amount,
			Currency:    currency,
			UniqueID:    uniqueID,
		}
		if fromName != nil {
			p.FromAccountID = &byName[*fromName].ID
		}
		if toName != nil {
			p.ToAccountID = &byName[*toName].ID
		}

		if !immediate {
			if err := s.insertPayment(ctx, tx, p); err != nil {
				return err
			}
			created = p
			return nil
		}

		plan, err := planSettlement(p, accounts)
		if err != nil {
			return err
		}
		p.Confirmed = true
		p.SourceBalanceBefore = plan.sourceBefore
		p.DestinationBalanceBefore = plan.destBefore
		if err := s.insertPayment(ctx, tx, p); err != nil {
			return err
		}
		for _, upd := range plan.updates {
			if err := s.repo.UpdateAccountBalance(ctx, tx, upd.accountID, upd.balance); err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if immediate {
		log.Printf("CreatePayment: settled payment %d (%s %s) immediately", created.ID, created.Amount, created.Currency)
		metrics.RecordPaymentCreated("immediate")
		metrics.RecordPaymentSettled("immediate")
		s.publishPaymentEvent(ctx, EventPaymentSettled, created)
	} else {
		log.Printf("CreatePayment: created unconfirmed payment %d (%s %s)", created.ID, created.Amount, created.Currency)
		metrics.RecordPaymentCreated("two_phase")
		s.publishPaymentEvent(ctx, EventPaymentCreated, created)
	}
	return created, nil
}

func (s *Service) insertPayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if err := s.repo.InsertPayment(ctx, tx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateUniqueID) {
			metrics.RecordSettlementRejection("duplicate_unique_id")
			return domain.Conflictf("A payment with unique_id %q already exists", p.UniqueID)
		}
		return err
	}
	return nil
}

// ConfirmPayment drives an unconfirmed payment through settlement.
//
// The payment and its accounts are re-fetched under fresh exclusive locks;
// nothing validated at creation time is trusted here. An already-confirmed
// payment yields the distinguished ConfirmAlreadyDone outcome without touching
// anything. Any validation failure rolls back completely, leaving the payment
// unconfirmed and retryable.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID int64, req domain.ConfirmPaymentRequest) (*domain.ConfirmResult, error) {
	if req.Confirmed == nil || !*req.Confirmed {
		return nil, domain.Validationf("The only valid value for 'confirmed' is 'true'")
	}

	var result *domain.ConfirmResult
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := s.repo.LockPaymentByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Confirmed {
			result = &domain.ConfirmResult{Status: domain.ConfirmAlreadyDone, Payment: p}
			return nil
		}

		ids := []int64{}
		if p.FromAccountID != nil {
			ids = append(ids, *p.FromAccountID)
		}
		if p.ToAccountID != nil {
			ids = append(ids, *p.ToAccountID)
		}
		if len(ids) == 0 {
			return domain.Validationf("payment no longer references any account")
		}

		accounts, err := s.repo.LockAccountsByID(ctx, tx, ids)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return domain.Validationf("payment references an account that no longer exists")
			}
			return err
		}

		plan, err := planSettlement(p, accounts)
		if err != nil {
			return err
		}
		if err := s.repo.MarkPaymentConfirmed(ctx, tx, p.ID, plan.sourceBefore, plan.destBefore); err != nil {
			return err
		}
		for _, upd := range plan.updates {
			if err := s.repo.UpdateAccountBalance(ctx, tx, upd.accountID, upd.balance); err != nil {
				return err
			}
		}

		p.Confirmed = true
		p.SourceBalanceBefore = plan.sourceBefore
		p.DestinationBalanceBefore = plan.destBefore
		for i := range accounts {
			name := accounts[i].Name
			if p.FromAccountID != nil && accounts[i].ID == *p.FromAccountID {
				p.FromAccount = &name
			}
			if p.ToAccountID != nil && accounts[i].ID == *p.ToAccountID {
				p.ToAccount = &name
			}
		}
		result = &domain.ConfirmResult{Status: domain.ConfirmApplied, Payment: p}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == domain.ConfirmApplied {
		log.Printf("ConfirmPayment: settled payment %d (%s %s)", result.Payment.ID, result.Payment.Amount, result.Payment.Currency)
		metrics.RecordPaymentSettled("confirm")
		s.publishPaymentEvent(ctx, EventPaymentSettled, result.Payment)
	}
	return result, nil
}

// GetPayment fetches one payment by id.
func (s *Service) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.repo.GetPaymentByID(ctx, id)
}

// ListPayments returns one page of payment history, newest first, with opaque
// navigation cursors. A malformed cursor token is a validation failure; a
// malformed limit silently falls back to the configured default.
func (s *Service) ListPayments(ctx context.Context, cursorToken, rawLimit string, filter domain.PaymentFilter) (*domain.PaymentPage, error) {
	var cursor *pagination.Cursor
	if cursorToken != "" {
		c, err := pagination.Decode(cursorToken)
		if err != nil {
			return nil, domain.Validationf("invalid cursor")
		}
		cursor = c
	}

	w := pagination.Window{
		Cursor: cursor,
		Limit:  pagination.ParseLimit(rawLimit, s.pageSizeDefault, s.pageSizeMax),
	}

	sw := store.PaymentWindow{Desc: w.Descending(), Limit: w.FetchLimit(), Filter: filter}
	if cursor != nil {
		sw.Cmp = cursor.Cmp
		sw.Key = cursor.Key
	}
	rows, err := s.repo.ListPayments(ctx, sw)
	if err != nil {
		return nil, err
	}
	if !w.Descending() {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	keys := make([]int64, len(rows))
	for i := range rows {
		keys[i] = rows[i].ID
	}
	page := pagination.Resolve(w, keys)

	return &domain.PaymentPage{
		Records: rows[:page.Size],
		This:    encodeCursor(page.This),
		Next:    encodeCursor(page.Next),
		Prev:    encodeCursor(page.Prev),
	}, nil
}

func encodeCursor(c *pagination.Cursor) *string {
	if c == nil {
		return nil
	}
	token := c.Encode()
	return &token
}

func (s *Service) publishPaymentEvent(ctx context.Context, eventType string, p *domain.Payment) {
	if s.eventProducer == nil {
		return
	}
	event := domain.PaymentEvent{
		EventType:   eventType,
		PaymentID:   p.ID,
		UniqueID:    p.UniqueID,
		FromAccount: p.FromAccount,
		ToAccount:   p.ToAccount,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Confirmed:   p.Confirmed,
		Time:        p.Time,
	}
	if err := s.eventProducer.Publish(ctx, eventType, event); err != nil {
		log.Printf("publishPaymentEvent: failed to publish %s for payment %d: %v", eventType, p.ID, err)
	}
}

type balanceUpdate struct {
	accountID int64
	balance   decimal.Decimal
}

type settlementPlan struct {
	sourceBefore *decimal.Decimal
	destBefore   *decimal.Decimal
	updates      []balanceUpdate
}

// planSettlement is the settlement primitive shared by immediate creation and
// confirmation. It validates the payment against the locked account rows and
// computes the balance snapshots and resulting balances.
//
// The locked set must correspond exactly to the accounts the payment references;
// any mismatch is a contract violation between engine layers, reported as a
// PreconditionError rather than a client mistake. Currency agreement and
// sufficient source funds are business rules and fail as ValidationErrors.
func planSettlement(p *domain.Payment, accounts []domain.Account) (*settlementPlan, error) {
	if p.FromAccountID == nil && p.ToAccountID == nil {
		return nil, domain.Preconditionf("settlement: payment %d references no accounts", p.ID)
	}

	referenced := make(map[int64]struct{}, 2)
	if p.FromAccountID != nil {
		referenced[*p.FromAccountID] = struct{}{}
	}
	if p.ToAccountID != nil {
		referenced[*p.ToAccountID] = struct{}{}
	}

	balances := make(map[int64]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		if _, ok := referenced[a.ID]; !ok {
			return nil, domain.Preconditionf("settlement: account %q does not belong to payment %d", a.Name, p.ID)
		}
		balances[a.ID] = a.Balance
	}
	for id := range referenced {
		if _, ok := balances[id]; !ok {
			return nil, domain.Preconditionf("settlement: account %d missing from the locked set for payment %d", id, p.ID)
		}
	}

	for _, a := range accounts {
		if a.Currency != p.Currency {
			metrics.RecordSettlementRejection("currency_mismatch")
			return nil, domain.Validationf("Accounts and payment must all use the same currency")
		}
	}

	plan := &settlementPlan{}
	final := make(map[int64]decimal.Decimal, len(balances))
	for id, b := range balances {
		final[id] = b
	}

	if p.FromAccountID != nil {
		before := balances[*p.FromAccountID]
		plan.sourceBefore = &before
		if before.Cmp(p.Amount) < 0 {
			metrics.RecordSettlementRejection("insufficient_funds")
			return nil, domain.Validationf("Source account balance is too low for this payment")
		}
		final[*p.FromAccountID] = final[*p.FromAccountID].Sub(p.Amount)
	}
	if p.ToAccountID != nil {
		before := balances[*p.ToAccountID]
		plan.destBefore = &before
		final[*p.ToAccountID] = final[*p.ToAccountID].Add(p.Amount)
	}

	for id, balance := range final {
		plan.updates = append(plan.updates, balanceUpdate{accountID: id, balance: balance})
	}
	sort.Slice(plan.updates, func(i, j int) bool {
		return plan.updates[i].accountID < plan.updates[j].accountID
	})
	return plan, nil
}
