package models

import (
	"strings"
	"time"
)

// AccountKind names the table an account lives in.
type AccountKind string

const (
	AccountKindIndividual   AccountKind = "individual"
	AccountKindOrganization AccountKind = "organization"
	AccountKindStaff        AccountKind = "staff"
)

func (k AccountKind) Valid() bool {
	switch k {
	case AccountKindIndividual, AccountKindOrganization, AccountKindStaff:
		return true
	}
	return false
}

// SelfService reports whether accounts of this kind can sign up and
// receive one-time codes.
func (k AccountKind) SelfService() bool {
	return k == AccountKindIndividual || k == AccountKindOrganization
}

// ParseAccountKind accepts kind names and role names ("user" is an
// individual, "admin" is staff).
func ParseAccountKind(s string) (AccountKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if kind := AccountKind(s); kind.Valid() {
		return kind, true
	}
	if kind, ok := KindForRole(Role(s)); ok {
		return kind, true
	}
	return "", false
}

// Role is the caller-declared role selector.
type Role string

const (
	RoleUser         Role = "user"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

// ParseRole normalises case and surrounding whitespace before matching.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case RoleUser, RoleOrganization, RoleAdmin:
		return role, true
	}
	return "", false
}

func KindForRole(role Role) (AccountKind, bool) {
	switch role {
	case RoleUser:
		return AccountKindIndividual, true
	case RoleOrganization:
		return AccountKindOrganization, true
	case RoleAdmin:
		return AccountKindStaff, true
	}
	return "", false
}

func RoleForKind(kind AccountKind) Role {
	switch kind {
	case AccountKindOrganization:
		return RoleOrganization
	case AccountKindStaff:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Account is implemented by Individual, Organization and Staff.
type Account interface {
	AccountID() string
	Kind() AccountKind
	Base() *AccountBase
}

type StatusFlags struct {
	IsBlocked bool `json:"isBlocked"`
	IsBanned  bool `json:"isBanned"`
	IsDeleted bool `json:"isDeleted"`
}

// AccountBase holds the fields every account table carries.
type AccountBase struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PhoneNumber  string     `json:"phoneNumber"`
	PasswordHash []byte     `json:"-"`
	IsVerified   bool       `json:"isVerified"`
	IsBlocked    bool       `json:"isBlocked"`
	BlockReason  string     `json:"blockReason,omitempty"`
	IsBanned     bool       `json:"isBanned"`
	BanReason    string     `json:"banReason,omitempty"`
	IsDeleted    bool       `json:"isDeleted"`
	DeleteReason string     `json:"deleteReason,omitempty"`
	IsOnline     bool       `json:"isOnline"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (b *AccountBase) AccountID() string  { return b.ID }
func (b *AccountBase) Base() *AccountBase { return b }

func (b *AccountBase) Flags() StatusFlags {
	return StatusFlags{
		IsBlocked: b.IsBlocked,
		IsBanned:  b.IsBanned,
		IsDeleted: b.IsDeleted,
	}
}

type Individual struct {
	AccountBase
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country,omitempty"`
	Gender    string `json:"gender,omitempty"`
	IsKIP     bool   `json:"isKip"`
}

func (*Individual) Kind() AccountKind { return AccountKindIndividual }

type Organization struct {
	AccountBase
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Industry           string `json:"industry"`
	Country            string `json:"country,omitempty"`
	Website            string `json:"website,omitempty"`
	IsKIP              bool   `json:"isKip"`
}

func (*Organization) Kind() AccountKind { return AccountKindOrganization }

type Staff struct {
	AccountBase
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Position  string `json:"position"`
}

func (*Staff) Kind() AccountKind { return AccountKindStaff }

// FlagPatch is a partial update of the status columns. Nil fields are left
// untouched.
type FlagPatch struct {
	IsVerified   *bool
	IsBlocked    *bool
	BlockReason  *string
	IsBanned     *bool
	BanReason    *string
	IsDeleted    *bool
	DeleteReason *string
}

func (p FlagPatch) Empty() bool {
	return p.IsVerified == nil && p.IsBlocked == nil && p.BlockReason == nil &&
		p.IsBanned == nil && p.BanReason == nil && p.IsDeleted == nil && p.DeleteReason == nil
}
