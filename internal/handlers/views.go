package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/models"
	"kapacity/api/internal/service"
)

// accountView copies the public fields of an account. The password hash is
// never among them.
func accountView(account models.Account) gin.H {
	b := account.Base()
	view := gin.H{
		"id":          b.ID,
		"kind":        account.Kind(),
		"email":       b.Email,
		"phoneNumber": b.PhoneNumber,
		"isVerified":  b.IsVerified,
		"isBlocked":   b.IsBlocked,
		"isBanned":    b.IsBanned,
		"isDeleted":   b.IsDeleted,
		"isOnline":    b.IsOnline,
		"createdAt":   b.CreatedAt,
		"updatedAt":   b.UpdatedAt,
	}
	if b.LastSeenAt != nil {
		view["lastSeenAt"] = b.LastSeenAt
	}

	switch a := account.(type) {
	case *models.Individual:
		view["firstName"] = a.FirstName
		view["lastName"] = a.LastName
		view["country"] = a.Country
		view["gender"] = a.Gender
		view["isKip"] = a.IsKIP
	case *models.Organization:
		view["name"] = a.Name
		view["registrationNumber"] = a.RegistrationNumber
		view["industry"] = a.Industry
		view["country"] = a.Country
		view["website"] = a.Website
		view["isKip"] = a.IsKIP
	case *models.Staff:
		view["firstName"] = a.FirstName
		view["lastName"] = a.LastName
		view["position"] = a.Position
	}
	return view
}

func pendingView(p service.PendingCode) gin.H {
	return gin.H{
		"ownerReference": p.OwnerReference,
		"kind":           p.OwnerKind,
		"channel":        p.Channel,
		"expiresAt":      p.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func sessionView(s service.Session) gin.H {
	return gin.H{
		"account":   accountView(s.Account),
		"token":     s.Token,
		"role":      models.RoleForKind(s.Account.Kind()),
		"expiresAt": s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
