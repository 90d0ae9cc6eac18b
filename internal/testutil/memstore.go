// Package testutil holds in-memory stand-ins for the postgres stores. They
// keep the same contracts, including atomic consume-and-apply.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
)

// Store implements the account store, the code ledger and the stats
// counters over maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	accounts map[models.AccountKind]map[string]models.Account
	codes    map[models.OTPKey]models.OTPRecord
	stats    map[models.AccountKind]int64

	// FailNext, when set, is returned by the next call and cleared.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		accounts: map[models.AccountKind]map[string]models.Account{},
		codes:    map[models.OTPKey]models.OTPRecord{},
		stats:    map[models.AccountKind]int64{},
	}
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *Store) FindByID(_ context.Context, kind models.AccountKind, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if acc, ok := s.accounts[kind][id]; ok {
		return clone(acc), nil
	}
	return nil, repository.ErrAccountNotFound
}

func (s *Store) FindByEmailOrPhone(_ context.Context, kind models.AccountKind, email, phone string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if acc := s.match(kind, email, phone); acc != nil {
		return clone(acc), nil
	}
	return nil, repository.ErrAccountNotFound
}

func (s *Store) match(kind models.AccountKind, email, phone string) models.Account {
	for _, acc := range s.accounts[kind] {
		b := acc.Base()
		if email != "" && strings.EqualFold(b.Email, email) {
			return acc
		}
		if phone != "" && b.PhoneNumber == phone {
			return acc
		}
	}
	return nil
}

func (s *Store) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	return s.insert(account)
}

func (s *Store) insert(account models.Account) error {
	b := account.Base()
	kind := account.Kind()
	if _, ok := s.accounts[kind][b.ID]; ok {
		return repository.ErrDuplicateAccount
	}
	if s.match(kind, b.Email, b.PhoneNumber) != nil {
		return repository.ErrDuplicateAccount
	}
	if s.accounts[kind] == nil {
		s.accounts[kind] = map[string]models.Account{}
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.accounts[kind][b.ID] = clone(account)
	return nil
}

func (s *Store) UpdateFlags(_ context.Context, kind models.AccountKind, id string, patch models.FlagPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	return s.patch(kind, id, patch)
}

func (s *Store) patch(kind models.AccountKind, id string, p models.FlagPatch) error {
	acc, ok := s.accounts[kind][id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	b := acc.Base()
	if p.IsVerified != nil {
		b.IsVerified = *p.IsVerified
	}
	if p.IsBlocked != nil {
		b.IsBlocked = *p.IsBlocked
	}
	if p.BlockReason != nil {
		b.BlockReason = *p.BlockReason
	}
	if p.IsBanned != nil {
		b.IsBanned = *p.IsBanned
	}
	if p.BanReason != nil {
		b.BanReason = *p.BanReason
	}
	if p.IsDeleted != nil {
		b.IsDeleted = *p.IsDeleted
	}
	if p.DeleteReason != nil {
		b.DeleteReason = *p.DeleteReason
	}
	b.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetPresence(_ context.Context, kind models.AccountKind, id string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	acc, ok := s.accounts[kind][id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	b := acc.Base()
	b.IsOnline = online
	b.LastSeenAt = &at
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, kind models.AccountKind, id string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	return s.setPassword(kind, id, hash)
}

func (s *Store) setPassword(kind models.AccountKind, id string, hash []byte) error {
	acc, ok := s.accounts[kind][id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	acc.Base().PasswordHash = hash
	return nil
}

func (s *Store) Purge(_ context.Context, kind models.AccountKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.accounts[kind][id]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(s.accounts[kind], id)
	return nil
}

// Put upserts on the ledger key.
func (s *Store) Put(_ context.Context, rec models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	rec.CreatedAt = time.Now()
	s.codes[rec.OTPKey] = rec
	return nil
}

func (s *Store) Find(_ context.Context, key models.OTPKey) (models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return models.OTPRecord{}, err
	}
	rec, ok := s.codes[key]
	if !ok {
		return models.OTPRecord{}, repository.ErrCodeNotFound
	}
	return rec, nil
}

func (s *Store) Delete(_ context.Context, key models.OTPKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.codes, key)
	return nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	var n int64
	for key, rec := range s.codes {
		if rec.Expired(now) {
			delete(s.codes, key)
			n++
		}
	}
	return n, nil
}

// consume must be called with the lock held. On success the record is
// gone; callers restore it if their effect fails.
func (s *Store) consume(key models.OTPKey, codeHash string, now time.Time) (models.OTPRecord, error) {
	rec, ok := s.codes[key]
	if !ok || rec.CodeHash != codeHash || rec.Expired(now) {
		return models.OTPRecord{}, repository.ErrCodeNotFound
	}
	delete(s.codes, key)
	return rec, nil
}

func (s *Store) ConsumeAndCreate(_ context.Context, key models.OTPKey, codeHash string, now time.Time, build func(models.OTPRecord) (models.Account, error)) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	rec, err := s.consume(key, codeHash, now)
	if err != nil {
		return nil, err
	}
	account, err := build(rec)
	if err == nil {
		err = s.insert(account)
	}
	if err != nil {
		s.codes[key] = rec
		return nil, err
	}
	return clone(account), nil
}

func (s *Store) ConsumeAndVerify(_ context.Context, key models.OTPKey, codeHash string, now time.Time) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	rec, err := s.consume(key, codeHash, now)
	if err != nil {
		return nil, err
	}
	if err := s.patch(key.OwnerKind, key.OwnerRef, models.FlagPatch{IsVerified: boolPtr(true)}); err != nil {
		s.codes[key] = rec
		return nil, err
	}
	return clone(s.accounts[key.OwnerKind][key.OwnerRef]), nil
}

func (s *Store) ConsumeAndSetPassword(_ context.Context, key models.OTPKey, codeHash string, now time.Time, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	rec, err := s.consume(key, codeHash, now)
	if err != nil {
		return err
	}
	if err := s.setPassword(key.OwnerKind, key.OwnerRef, passwordHash); err != nil {
		s.codes[key] = rec
		return err
	}
	return nil
}

func (s *Store) Increment(_ context.Context, kind models.AccountKind, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.stats[kind] += delta
	return nil
}

func (s *Store) List(_ context.Context) ([]models.AccountStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]models.AccountStat, 0, len(s.stats))
	for kind, total := range s.stats {
		out = append(out, models.AccountStat{Kind: kind, Total: total, UpdatedAt: time.Now()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

// Accounts returns copies of every stored account of kind.
func (s *Store) Accounts(kind models.AccountKind) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.accounts[kind]))
	for _, acc := range s.accounts[kind] {
		out = append(out, clone(acc))
	}
	return out
}

// Codes returns a copy of the ledger.
func (s *Store) Codes() []models.OTPRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OTPRecord, 0, len(s.codes))
	for _, rec := range s.codes {
		out = append(out, rec)
	}
	return out
}

// Seed stores account as is, bypassing uniqueness checks.
func (s *Store) Seed(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := account.Kind()
	if s.accounts[kind] == nil {
		s.accounts[kind] = map[string]models.Account{}
	}
	s.accounts[kind][account.AccountID()] = clone(account)
}

// ExpireAll moves every code's expiry into the past.
func (s *Store) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.codes {
		rec.ExpiresAt = time.Now().Add(-time.Second)
		s.codes[key] = rec
	}
}

func clone(account models.Account) models.Account {
	switch a := account.(type) {
	case *models.Individual:
		c := *a
		return &c
	case *models.Organization:
		c := *a
		return &c
	case *models.Staff:
		c := *a
		return &c
	}
	return account
}

func boolPtr(b bool) *bool { return &b }
