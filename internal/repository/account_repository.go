// Package repository owns the durable account collection.
package repository

import (
	"context"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
)

// AccountRepository is the contract the ledger relies on. Lookups return
// errors.ErrAccountNotFound when nothing matches; any problem with the
// underlying document surfaces as errors.ErrStorageFault.
type AccountRepository interface {
	LoadAll(ctx context.Context) map[int64]domain.Account
	StoreAll(ctx context.Context, accounts map[int64]domain.Account) error
	NextID() int64
	FindByID(ctx context.Context, id int64) (domain.Account, error)
	FindByPhone(ctx context.Context, phone string) (domain.Account, error)
	FindByChatLink(ctx context.Context, chatLink string) (domain.Account, error)
	PhoneExists(ctx context.Context, phone string) bool
	Save(ctx context.Context, account domain.Account) error
	Count(ctx context.Context) int
	LinkChat(ctx context.Context, phone, chatLink string) (bool, error)
	Update(ctx context.Context, fn func(tx *Tx) error) error
}

// Tx is a working copy of the collection handed to Update callbacks.
// Nothing becomes visible to other callers until the callback returns nil
// and the document has been written.
type Tx struct {
	accounts map[int64]domain.Account
	dirty    bool
}

func (tx *Tx) Get(id int64) (domain.Account, bool) {
	acc, ok := tx.accounts[id]
	return acc, ok
}

func (tx *Tx) ByPhone(phone string) (domain.Account, bool) {
	for _, acc := range tx.accounts {
		if acc.Phone == phone {
			return acc, true
		}
	}
	return domain.Account{}, false
}

func (tx *Tx) Put(account domain.Account) error {
	if err := validateAccount(account); err != nil {
		return err
	}
	if other, ok := tx.ByPhone(account.Phone); ok && other.ID != account.ID {
		return errors.Wrapf(errors.ErrPhoneTaken, "%s", account.Phone)
	}

	tx.accounts[account.ID] = account
	tx.dirty = true
	return nil
}

// DetachChatLink removes chatLink from every account holding it, keeping
// each chat channel bound to at most one account.
func (tx *Tx) DetachChatLink(chatLink string) error {
	if chatLink == "" {
		return nil
	}
	for _, acc := range tx.accounts {
		if acc.ChatLink != chatLink {
			continue
		}
		acc.ChatLink = ""
		if err := tx.Put(acc); err != nil {
			return err
		}
	}
	return nil
}
