// Package validate normalises contact details before they are compared or
// stored.
package validate

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrPasswordLength  = errors.New("password must be between 8 and 100 characters")
	ErrMissingIdentity = errors.New("email or phone number required")
)

const (
	minPasswordLen = 8
	maxPasswordLen = 100
)

// NormalizeEmail lower-cases and checks a bare address ("a@b.com", no
// display name).
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// NormalizePhone returns the E.164 form. Numbers without a leading + are
// read in defaultRegion.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func Password(pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return ErrPasswordLength
	}
	return nil
}

// Identifier splits a sign-in identifier into an email or a phone number.
func Identifier(raw, defaultRegion string) (email string, phone string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrMissingIdentity
	}
	if strings.Contains(raw, "@") {
		email, err = NormalizeEmail(raw)
		return email, "", err
	}
	phone, err = NormalizePhone(raw, defaultRegion)
	return "", phone, err
}
