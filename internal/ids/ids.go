package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable identifier. Account ids and OTP placeholder
// owner references share this space, so a placeholder becomes the account
// id unchanged once signup completes.
func New() string {
	return ksuid.New().String()
}

// Valid reports whether s parses as an identifier produced by New.
func Valid(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}
