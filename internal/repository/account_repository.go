package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kapacity/api/internal/models"
)

const baseColumns = `id, COALESCE(email, ''), COALESCE(phone_number, ''), password_hash,
	is_verified, is_blocked, block_reason, is_banned, ban_reason, is_deleted, delete_reason,
	is_online, last_seen_at, created_at, updated_at`

var extraColumns = map[models.AccountKind]string{
	models.AccountKindIndividual:   `first_name, last_name, country, gender, is_kip`,
	models.AccountKindOrganization: `name, registration_number, industry, country, website, is_kip`,
	models.AccountKindStaff:        `first_name, last_name, position`,
}

func tableFor(kind models.AccountKind) (string, error) {
	switch kind {
	case models.AccountKindIndividual:
		return "individuals", nil
	case models.AccountKindOrganization:
		return "organizations", nil
	case models.AccountKindStaff:
		return "staff", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// AccountRepository stores the three account tables. Each call is routed
// to exactly one table by kind.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) FindByID(ctx context.Context, kind models.AccountKind, id string) (models.Account, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE id = $1`, baseColumns, extraColumns[kind], table)
	return scanAccount(kind, r.pool.QueryRow(ctx, query, id))
}

// FindByEmailOrPhone matches either identifier; empty ones are ignored.
func (r *AccountRepository) FindByEmailOrPhone(ctx context.Context, kind models.AccountKind, email, phone string) (models.Account, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if email == "" && phone == "" {
		return nil, ErrAccountNotFound
	}
	query := fmt.Sprintf(`
		SELECT %s, %s FROM %s
		WHERE ($1 <> '' AND LOWER(email) = LOWER($1))
		   OR ($2 <> '' AND phone_number = $2)
		ORDER BY created_at
		LIMIT 1
	`, baseColumns, extraColumns[kind], table)
	return scanAccount(kind, r.pool.QueryRow(ctx, query, email, phone))
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) error {
	return insertAccount(ctx, r.pool, account)
}

func (r *AccountRepository) UpdateFlags(ctx context.Context, kind models.AccountKind, id string, patch models.FlagPatch) error {
	return updateFlags(ctx, r.pool, kind, id, patch)
}

func (r *AccountRepository) SetPresence(ctx context.Context, kind models.AccountKind, id string, online bool, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET is_online = $2, last_seen_at = $3, updated_at = NOW() WHERE id = $1`, table)
	return expectRow(r.pool.Exec(ctx, query, id, online, at))
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, kind models.AccountKind, id string, hash []byte) error {
	return updatePassword(ctx, r.pool, kind, id, hash)
}

// Purge removes the row outright, unlike the soft-delete flag.
func (r *AccountRepository) Purge(ctx context.Context, kind models.AccountKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	return expectRow(r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id))
}

func baseDest(b *models.AccountBase) []any {
	return []any{
		&b.ID,
		&b.Email,
		&b.PhoneNumber,
		&b.PasswordHash,
		&b.IsVerified,
		&b.IsBlocked,
		&b.BlockReason,
		&b.IsBanned,
		&b.BanReason,
		&b.IsDeleted,
		&b.DeleteReason,
		&b.IsOnline,
		&b.LastSeenAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanAccount(kind models.AccountKind, row pgx.Row) (models.Account, error) {
	var (
		account models.Account
		dest    []any
	)
	switch kind {
	case models.AccountKindIndividual:
		a := &models.Individual{}
		dest = append(baseDest(&a.AccountBase), &a.FirstName, &a.LastName, &a.Country, &a.Gender, &a.IsKIP)
		account = a
	case models.AccountKindOrganization:
		a := &models.Organization{}
		dest = append(baseDest(&a.AccountBase), &a.Name, &a.RegistrationNumber, &a.Industry, &a.Country, &a.Website, &a.IsKIP)
		account = a
	case models.AccountKindStaff:
		a := &models.Staff{}
		dest = append(baseDest(&a.AccountBase), &a.FirstName, &a.LastName, &a.Position)
		account = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func insertAccount(ctx context.Context, db DBTX, account models.Account) error {
	b := account.Base()
	var (
		query string
		args  []any
	)

	switch a := account.(type) {
	case *models.Individual:
		query = `
			INSERT INTO individuals (
				id, email, phone_number, password_hash, is_verified,
				first_name, last_name, country, gender, is_kip, created_at, updated_at
			) VALUES (
				$1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
			)
			RETURNING created_at, updated_at
		`
		args = []any{b.ID, b.Email, b.PhoneNumber, b.PasswordHash, b.IsVerified,
			a.FirstName, a.LastName, a.Country, a.Gender, a.IsKIP}
	case *models.Organization:
		query = `
			INSERT INTO organizations (
				id, email, phone_number, password_hash, is_verified,
				name, registration_number, industry, country, website, is_kip, created_at, updated_at
			) VALUES (
				$1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
			)
			RETURNING created_at, updated_at
		`
		args = []any{b.ID, b.Email, b.PhoneNumber, b.PasswordHash, b.IsVerified,
			a.Name, a.RegistrationNumber, a.Industry, a.Country, a.Website, a.IsKIP}
	case *models.Staff:
		query = `
			INSERT INTO staff (
				id, email, phone_number, password_hash, is_verified,
				first_name, last_name, position, created_at, updated_at
			) VALUES (
				$1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, NOW(), NOW()
			)
			RETURNING created_at, updated_at
		`
		args = []any{b.ID, b.Email, b.PhoneNumber, b.PasswordHash, b.IsVerified,
			a.FirstName, a.LastName, a.Position}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, account)
	}

	if err := db.QueryRow(ctx, query, args...).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func updateFlags(ctx context.Context, db DBTX, kind models.AccountKind, id string, patch models.FlagPatch) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	var (
		sets = make([]string, 0, 8)
		args = []any{id}
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}
	if patch.IsBlocked != nil {
		add("is_blocked", *patch.IsBlocked)
	}
	if patch.BlockReason != nil {
		add("block_reason", *patch.BlockReason)
	}
	if patch.IsBanned != nil {
		add("is_banned", *patch.IsBanned)
	}
	if patch.BanReason != nil {
		add("ban_reason", *patch.BanReason)
	}
	if patch.IsDeleted != nil {
		add("is_deleted", *patch.IsDeleted)
	}
	if patch.DeleteReason != nil {
		add("delete_reason", *patch.DeleteReason)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, table, strings.Join(sets, ", "))
	return expectRow(db.Exec(ctx, query, args...))
}

func updatePassword(ctx context.Context, db DBTX, kind models.AccountKind, id string, hash []byte) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $2, updated_at = NOW() WHERE id = $1`, table)
	return expectRow(db.Exec(ctx, query, id, hash))
}
