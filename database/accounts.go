package database

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/ortelius/pdvd-idp/model"
)

// AccountRepository stores the local login accounts
type AccountRepository struct {
	db *memdb.MemDB
}

// NewAccountRepository creates a repository on top of conn
func NewAccountRepository(conn DBConnection) *AccountRepository {
	return &AccountRepository{db: conn.DB}
}

// Save inserts or replaces an account
func (r *AccountRepository) Save(_ context.Context, account *model.Account) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(accountTable, account.Clone()); err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.Username, err)
	}
	txn.Commit()
	return nil
}

// Get returns the account for username or ErrNotFound
func (r *AccountRepository) Get(_ context.Context, username string) (*model.Account, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	account, err := getAccount(txn, username)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Update runs fn on a copy of the account and stores the result in the same
// write transaction. Nothing is stored when fn returns an error.
func (r *AccountRepository) Update(_ context.Context, username string, fn func(*model.Account) error) (*model.Account, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	stored, err := getAccount(txn, username)
	if err != nil {
		return nil, err
	}

	account := stored.Clone()
	if err := fn(account); err != nil {
		return nil, err
	}
	if err := txn.Insert(accountTable, account); err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", username, err)
	}
	txn.Commit()
	return account.Clone(), nil
}

func getAccount(txn *memdb.Txn, username string) (*model.Account, error) {
	raw, err := txn.First(accountTable, idIndex, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*model.Account), nil
}
