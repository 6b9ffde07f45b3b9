package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"
)

var (
	emailRegexp     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	sixDigitsRegexp = regexp.MustCompile(`^\d{6}$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// randomDigits returns n uniformly distributed decimal digits from crypto/rand.
func randomDigits(n int) (string, error) {
	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(n)
	for range n {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// lookupHash is an unsalted digest, so the stored value can be matched in a WHERE clause.
// Only suitable for short-lived codes that are deleted on first use.
func lookupHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
