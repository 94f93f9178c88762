package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
)

// AccountStore keeps the authoritative collection in memory and writes the
// whole document through to disk on every mutation. The document is a JSON
// object keyed by the decimal account id.
type AccountStore struct {
	path string
	log  *slog.Logger

	mu       sync.RWMutex
	accounts map[int64]domain.Account
	nextID   int64
	stamp    fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

var _ AccountRepository = (*AccountStore)(nil)

func NewAccountStore(path string, log *slog.Logger) *AccountStore {
	if log == nil {
		log = slog.Default()
	}

	return &AccountStore{
		path:     path,
		log:      log.With(slog.String("component", "account_store")),
		accounts: make(map[int64]domain.Account),
		nextID:   1,
	}
}

// Initialize creates an empty document when none exists, then loads and
// validates it. Calling it again re-reads the document.
func (s *AccountStore) Initialize(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewStorageError(fmt.Errorf("create store dir: %w", err))
		}
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.mu.Lock()
		err := s.writeLocked(map[int64]domain.Account{})
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.log.InfoContext(ctx, "created empty account store", slog.String("path", s.path))
	} else if err != nil {
		return errors.NewStorageError(fmt.Errorf("stat store: %w", err))
	}

	accounts, stamp, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.stamp = stamp
	s.nextID = max(s.nextID, nextIDFor(accounts))
	nextID := s.nextID
	s.mu.Unlock()

	s.log.InfoContext(ctx, "account store loaded",
		slog.Int("accounts", len(accounts)),
		slog.Int64("next_id", nextID),
	)

	return nil
}

func (s *AccountStore) LoadAll(_ context.Context) map[int64]domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.accounts)
}

// StoreAll replaces the whole collection. The previous contents stay in
// effect when the document cannot be written.
func (s *AccountStore) StoreAll(_ context.Context, accounts map[int64]domain.Account) error {
	if err := validateCollection(accounts); err != nil {
		return err
	}

	next := maps.Clone(accounts)
	if next == nil {
		next = make(map[int64]domain.Account)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.accounts = next
	s.nextID = max(s.nextID, nextIDFor(next))
	return nil
}

// NextID hands out ids from an in-memory counter seeded at load time. It is
// only unique within one process; two processes sharing the document must
// not register accounts concurrently.
func (s *AccountStore) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	return id
}

func (s *AccountStore) FindByID(_ context.Context, id int64) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, errors.Wrapf(errors.ErrAccountNotFound, "id %d", id)
	}
	return acc, nil
}

func (s *AccountStore) FindByPhone(_ context.Context, phone string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.Phone == phone {
			return acc, nil
		}
	}
	return domain.Account{}, errors.Wrapf(errors.ErrAccountNotFound, "phone %s", phone)
}

func (s *AccountStore) FindByChatLink(_ context.Context, chatLink string) (domain.Account, error) {
	if chatLink == "" {
		return domain.Account{}, errors.ErrAccountNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.ChatLink == chatLink {
			return acc, nil
		}
	}
	return domain.Account{}, errors.Wrapf(errors.ErrAccountNotFound, "chat %s", chatLink)
}

func (s *AccountStore) PhoneExists(ctx context.Context, phone string) bool {
	_, err := s.FindByPhone(ctx, phone)
	return err == nil
}

// Save inserts or fully replaces one account record.
func (s *AccountStore) Save(ctx context.Context, account domain.Account) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Put(account)
	})
}

func (s *AccountStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.accounts)
}

// LinkChat attaches a chat channel to the account owning phone, detaching
// it from any other account first. It reports false when no such account exists.
func (s *AccountStore) LinkChat(ctx context.Context, phone, chatLink string) (bool, error) {
	linked := false
	err := s.Update(ctx, func(tx *Tx) error {
		acc, ok := tx.ByPhone(phone)
		if !ok {
			return nil
		}
		if err := tx.DetachChatLink(chatLink); err != nil {
			return err
		}
		acc, _ = tx.Get(acc.ID)
		acc.ChatLink = chatLink
		linked = true
		return tx.Put(acc)
	})
	if err != nil {
		return false, err
	}
	return linked, nil
}

// Update runs fn against a private copy of the collection while holding the
// write lock, then persists the copy and makes it current. Either every
// change made by fn becomes visible or none does.
func (s *AccountStore) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{accounts: maps.Clone(s.accounts)}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}

	if err := s.writeLocked(tx.accounts); err != nil {
		s.log.ErrorContext(ctx, "failed to persist accounts", slog.Any("error", err))
		return err
	}

	s.accounts = tx.accounts
	return nil
}

func (s *AccountStore) writeLocked(accounts map[int64]domain.Account) error {
	doc := make(map[string]domain.Account, len(accounts))
	for id, acc := range accounts {
		doc[strconv.FormatInt(id, 10)] = acc
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return errors.NewStorageError(fmt.Errorf("encode accounts: %w", err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".accounts-*.tmp")
	if err != nil {
		return errors.NewStorageError(fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewStorageError(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewStorageError(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageError(fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.NewStorageError(fmt.Errorf("replace store file: %w", err))
	}

	if info, err := os.Stat(s.path); err == nil {
		s.stamp = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}

	return nil
}

func (s *AccountStore) read() (map[int64]domain.Account, fileStamp, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fileStamp{}, errors.NewStorageError(fmt.Errorf("read store: %w", err))
	}

	var stamp fileStamp
	if info, err := os.Stat(s.path); err == nil {
		stamp = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}

	accounts, err := decodeDocument(data)
	if err != nil {
		return nil, fileStamp{}, err
	}

	return accounts, stamp, nil
}

func decodeDocument(data []byte) (map[int64]domain.Account, error) {
	var doc map[string]domain.Account
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewStorageError(fmt.Errorf("decode accounts: %w", err))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.NewStorageError(fmt.Errorf("decode accounts: trailing data after document"))
	}
	if doc == nil {
		return nil, errors.NewStorageError(fmt.Errorf("decode accounts: document is not an object"))
	}

	accounts := make(map[int64]domain.Account, len(doc))
	for key, acc := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.NewStorageError(fmt.Errorf("account key %q is not an id", key))
		}
		if id != acc.ID {
			return nil, errors.NewStorageError(fmt.Errorf("account key %q does not match id %d", key, acc.ID))
		}
		accounts[id] = acc
	}

	if err := validateCollection(accounts); err != nil {
		return nil, errors.NewStorageError(err)
	}

	return accounts, nil
}

func validateCollection(accounts map[int64]domain.Account) error {
	phones := make(map[string]int64, len(accounts))
	for id, acc := range accounts {
		if id != acc.ID {
			return errors.Wrapf(errors.ErrValidation, "account %d stored under id %d", acc.ID, id)
		}
		if err := validateAccount(acc); err != nil {
			return err
		}
		if owner, ok := phones[acc.Phone]; ok {
			return errors.Wrapf(errors.ErrPhoneTaken, "phone %s shared by %d and %d", acc.Phone, owner, id)
		}
		phones[acc.Phone] = id
	}
	return nil
}

func validateAccount(acc domain.Account) error {
	switch {
	case acc.ID <= 0:
		return errors.Wrapf(errors.ErrValidation, "account id %d", acc.ID)
	case acc.Phone == "":
		return errors.Wrapf(errors.ErrValidation, "account %d has no phone", acc.ID)
	case acc.Balance.IsNegative():
		return errors.Wrapf(errors.ErrValidation, "account %d has negative balance", acc.ID)
	}
	return nil
}

func nextIDFor(accounts map[int64]domain.Account) int64 {
	var maxID int64
	for id := range accounts {
		maxID = max(maxID, id)
	}
	return maxID + 1
}
