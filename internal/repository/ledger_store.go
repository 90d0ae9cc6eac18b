package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kapacity/api/internal/models"
)

// LedgerStore is the code ledger plus the transactional operations that
// spend a code together with its account side effect, so a code is used up
// exactly when the effect commits.
type LedgerStore struct {
	*OTPRepository
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{
		OTPRepository: NewOTPRepository(pool),
		pool:          pool,
	}
}

// ConsumeAndCreate spends the code and inserts the account build derives
// from the consumed record. A duplicate insert rolls the consumption back.
func (s *LedgerStore) ConsumeAndCreate(
	ctx context.Context,
	key models.OTPKey,
	codeHash string,
	now time.Time,
	build func(models.OTPRecord) (models.Account, error),
) (models.Account, error) {
	var account models.Account
	err := WithTx(ctx, s.pool, func(ctx context.Context, tx DBTX) error {
		rec, err := consume(ctx, tx, key, codeHash, now)
		if err != nil {
			return err
		}
		account, err = build(rec)
		if err != nil {
			return err
		}
		return insertAccount(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ConsumeAndVerify spends the code and marks the owning account verified.
func (s *LedgerStore) ConsumeAndVerify(ctx context.Context, key models.OTPKey, codeHash string, now time.Time) (models.Account, error) {
	var account models.Account
	err := WithTx(ctx, s.pool, func(ctx context.Context, tx DBTX) error {
		if _, err := consume(ctx, tx, key, codeHash, now); err != nil {
			return err
		}
		verified := true
		if err := updateFlags(ctx, tx, key.OwnerKind, key.OwnerRef, models.FlagPatch{IsVerified: &verified}); err != nil {
			return err
		}
		table, err := tableFor(key.OwnerKind)
		if err != nil {
			return err
		}
		account, err = scanAccount(key.OwnerKind, tx.QueryRow(ctx,
			`SELECT `+baseColumns+`, `+extraColumns[key.OwnerKind]+` FROM `+table+` WHERE id = $1`, key.OwnerRef))
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ConsumeAndSetPassword spends the code and replaces the owner's password
// hash.
func (s *LedgerStore) ConsumeAndSetPassword(ctx context.Context, key models.OTPKey, codeHash string, now time.Time, passwordHash []byte) error {
	return WithTx(ctx, s.pool, func(ctx context.Context, tx DBTX) error {
		if _, err := consume(ctx, tx, key, codeHash, now); err != nil {
			return err
		}
		return updatePassword(ctx, tx, key.OwnerKind, key.OwnerRef, passwordHash)
	})
}
