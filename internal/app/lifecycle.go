/**
 * @description
 * Owner and account lifecycle operations. Creation and lookup are thin wrappers
 * over the repository; deletion carries the ledger's lifecycle guards:
 *
 *   - An account can be deleted only while its balance is exactly zero.
 *   - Deleting an owner atomically deletes its zero-balance accounts and then
 *     the owner itself. If any account still holds money the whole operation
 *     rolls back; a foreign-key backstop firing inside the transaction reports
 *     the same validation failure.
 *
 * Both guards evaluate against rows locked in the deleting transaction, so a
 * concurrent settlement cannot slip money into an account that is being removed.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/drdaeman/payments-api-demo/internal/store"
	"github.com/jackc/pgx/v5"
)

// CreateOwner registers a new owner.
func (s *Service) CreateOwner(ctx context.Context, req domain.CreateOwnerRequest) (*domain.Owner, error) {
	if err := domain.ValidateName("name", req.Name); err != nil {
		return nil, err
	}
	o, err := s.repo.CreateOwner(ctx, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.Validationf("an owner named %q already exists", req.Name)
		}
		return nil, err
	}
	log.Printf("CreateOwner: created owner %q", o.Name)
	return o, nil
}

// GetOwner fetches one owner by name.
func (s *Service) GetOwner(ctx context.Context, name string) (*domain.Owner, error) {
	return s.repo.GetOwnerByName(ctx, name)
}

// ListOwners returns all owners ordered by name.
func (s *Service) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	return s.repo.ListOwners(ctx)
}

// RenameOwner changes an owner's name. Account references follow automatically
// since they are keyed by id.
func (s *Service) RenameOwner(ctx context.Context, name string, req domain.RenameOwnerRequest) (*domain.Owner, error) {
	if err := domain.ValidateName("name", req.Name); err != nil {
		return nil, err
	}
	o, err := s.repo.RenameOwner(ctx, name, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.Validationf("an owner named %q already exists", req.Name)
		}
		return nil, err
	}
	log.Printf("RenameOwner: renamed owner %q to %q", name, o.Name)
	return o, nil
}

// DeleteOwner removes an owner together with its accounts, provided every one
// of them has a zero balance.
func (s *Service) DeleteOwner(ctx context.Context, name string) error {
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		o, err := s.repo.LockOwnerByName(ctx, tx, name)
		if err != nil {
			return err
		}
		accounts, err := s.repo.LockAccountsByOwnerID(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			if !a.Balance.IsZero() {
				return domain.Validationf("All belonging accounts must have zero balance")
			}
		}
		if err := s.repo.DeleteAccountsByOwnerID(ctx, tx, o.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteOwnerByID(ctx, tx, o.ID); err != nil {
			if errors.Is(err, store.ErrOwnerHasAccounts) {
				return domain.Validationf("All belonging accounts must have zero balance")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("DeleteOwner: deleted owner %q and its accounts", name)
	return nil
}

// CreateAccount opens a new zero-balance account under an owner.
func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := domain.ValidateName("name", req.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateName("owner", req.Owner); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.Validationf("currency is required")
	}
	if !s.currencies.Contains(currency) {
		return nil, domain.Validationf("currency %q is not supported", currency)
	}

	owner, err := s.repo.GetOwnerByName(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.CreateAccount(ctx, req.Name, owner.ID, currency)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.Validationf("an account named %q already exists", req.Name)
		}
		return nil, err
	}
	a.Owner = owner.Name
	log.Printf("CreateAccount: created account %q (%s) for owner %q", a.Name, a.Currency, owner.Name)
	return a, nil
}

// GetAccount fetches one account by name.
func (s *Service) GetAccount(ctx context.Context, name string) (*domain.Account, error) {
	return s.repo.GetAccountByName(ctx, name)
}

// ListAccounts returns accounts matching the filter, ordered by name.
func (s *Service) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// DeleteAccount removes an account, provided its balance is exactly zero.
func (s *Service) DeleteAccount(ctx context.Context, name string) error {
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := s.repo.LockAccountByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if !a.Balance.IsZero() {
			return domain.Validationf("Only accounts with zero balance can be deleted")
		}
		return s.repo.DeleteAccountByID(ctx, tx, a.ID)
	})
	if err != nil {
		return err
	}
	log.Printf("DeleteAccount: deleted account %q", name)
	return nil
}
