package service

import (
	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
)

// CheckStanding rejects deleted, banned and blocked accounts, in that order.
func CheckStanding(account models.Account) error {
	b := account.Base()
	switch {
	case b.IsDeleted:
		return apperr.New(apperr.KindForbidden, "Account has been deleted: "+b.DeleteReason)
	case b.IsBanned:
		return apperr.New(apperr.KindForbidden, "Account has been banned: "+b.BanReason)
	case b.IsBlocked:
		return apperr.New(apperr.KindForbidden, "Account has been blocked: "+b.BlockReason)
	}
	return nil
}
