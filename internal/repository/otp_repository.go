package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kapacity/api/internal/models"
)

const otpColumns = `owner_ref, owner_kind, purpose, code_hash, channel, destination, payload, expires_at, created_at`

// OTPRepository is the persisted one-time-code ledger. The primary key
// (owner_ref, owner_kind, purpose) keeps at most one live code per owner
// and purpose.
type OTPRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// Put stores rec, replacing any earlier code for the same key.
func (r *OTPRepository) Put(ctx context.Context, rec models.OTPRecord) error {
	const query = `
		INSERT INTO otp_codes (
			owner_ref, owner_kind, purpose, code_hash, channel, destination, payload, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
		ON CONFLICT (owner_ref, owner_kind, purpose)
		DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			channel = EXCLUDED.channel,
			destination = EXCLUDED.destination,
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		rec.OwnerRef,
		rec.OwnerKind,
		rec.Purpose,
		rec.CodeHash,
		rec.Channel,
		rec.Destination,
		nullablePayload(rec.Payload),
		rec.ExpiresAt,
	)
	return err
}

func (r *OTPRepository) Find(ctx context.Context, key models.OTPKey) (models.OTPRecord, error) {
	const query = `SELECT ` + otpColumns + ` FROM otp_codes WHERE owner_ref = $1 AND owner_kind = $2 AND purpose = $3`
	return scanOTP(r.pool.QueryRow(ctx, query, key.OwnerRef, key.OwnerKind, key.Purpose))
}

// Delete is idempotent.
func (r *OTPRepository) Delete(ctx context.Context, key models.OTPKey) error {
	const query = `DELETE FROM otp_codes WHERE owner_ref = $1 AND owner_kind = $2 AND purpose = $3`
	_, err := r.pool.Exec(ctx, query, key.OwnerRef, key.OwnerKind, key.Purpose)
	return err
}

// DeleteExpired drops every record whose expiry is at or before now.
func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// consume deletes and returns the record only if the hash matches and it is
// still live. A wrong code leaves the record in place.
func consume(ctx context.Context, db DBTX, key models.OTPKey, codeHash string, now time.Time) (models.OTPRecord, error) {
	const query = `
		DELETE FROM otp_codes
		WHERE owner_ref = $1 AND owner_kind = $2 AND purpose = $3
		  AND code_hash = $4 AND expires_at > $5
		RETURNING ` + otpColumns
	return scanOTP(db.QueryRow(ctx, query, key.OwnerRef, key.OwnerKind, key.Purpose, codeHash, now))
}

func scanOTP(row pgx.Row) (models.OTPRecord, error) {
	var (
		rec     models.OTPRecord
		payload []byte
	)
	if err := row.Scan(
		&rec.OwnerRef,
		&rec.OwnerKind,
		&rec.Purpose,
		&rec.CodeHash,
		&rec.Channel,
		&rec.Destination,
		&payload,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OTPRecord{}, ErrCodeNotFound
		}
		return models.OTPRecord{}, err
	}
	rec.Payload = payload
	return rec, nil
}

func nullablePayload(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

func expectRow(cmd pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
