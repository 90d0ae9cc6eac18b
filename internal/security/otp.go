package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// GenerateCode draws uniformly from 100000..999999, so the text form is
// always six digits without a leading zero.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// CodeHasher derives the stored form of a one-time code. The hash is bound
// to the ledger key so a code cannot be replayed against another record.
type CodeHasher struct {
	secret []byte
}

func NewCodeHasher(secret string) *CodeHasher {
	return &CodeHasher{secret: []byte(secret)}
}

func (h *CodeHasher) Hash(ownerRef, ownerKind, purpose, code string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(strings.Join([]string{ownerRef, ownerKind, purpose, code}, ":")))
	return hex.EncodeToString(mac.Sum(nil))
}
