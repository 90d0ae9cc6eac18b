package models

import (
	"encoding/json"
	"strings"
	"time"
)

type OTPPurpose string

const (
	OTPPurposeVerifyAccount OTPPurpose = "verify_account"
	OTPPurposeResetPassword OTPPurpose = "reset_password"
)

// Channel is the out-of-band route a code travels on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// OTPKey identifies at most one live code.
type OTPKey struct {
	OwnerRef  string
	OwnerKind AccountKind
	Purpose   OTPPurpose
}

type OTPRecord struct {
	OTPKey
	CodeHash    string
	Channel     Channel
	Destination string
	Payload     json.RawMessage
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (r OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// StagedSignup is the ledger payload of a pending signup. Only the password
// hash is staged.
type StagedSignup struct {
	Kind         AccountKind       `json:"kind"`
	Individual   *IndividualForm   `json:"individual,omitempty"`
	Organization *OrganizationForm `json:"organization,omitempty"`
	PasswordHash []byte            `json:"passwordHash"`
	StagedAt     time.Time         `json:"stagedAt"`
}

type IndividualForm struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Country     string `json:"country,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

type OrganizationForm struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Industry           string `json:"industry"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phoneNumber"`
	Country            string `json:"country,omitempty"`
	Website            string `json:"website,omitempty"`
}

// Materialize builds the account a staged signup describes, under id.
func (s StagedSignup) Materialize(id string) (Account, bool) {
	base := AccountBase{
		ID:           id,
		PasswordHash: s.PasswordHash,
		IsVerified:   true,
	}
	switch {
	case s.Kind == AccountKindIndividual && s.Individual != nil:
		f := s.Individual
		base.Email = f.Email
		base.PhoneNumber = f.PhoneNumber
		return &Individual{
			AccountBase: base,
			FirstName:   f.FirstName,
			LastName:    f.LastName,
			Country:     f.Country,
			Gender:      f.Gender,
		}, true
	case s.Kind == AccountKindOrganization && s.Organization != nil:
		f := s.Organization
		base.Email = f.Email
		base.PhoneNumber = f.PhoneNumber
		return &Organization{
			AccountBase:        base,
			Name:               f.Name,
			RegistrationNumber: f.RegistrationNumber,
			Industry:           f.Industry,
			Country:            f.Country,
			Website:            f.Website,
		}, true
	}
	return nil, false
}

type AccountStat struct {
	Kind      AccountKind `json:"kind"`
	Total     int64       `json:"total"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
