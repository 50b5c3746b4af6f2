// Package invites implements the invite code lifecycle: allocation of unique
// single-use codes and their exactly-once redemption.
package invites

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// codeAlphabet is the character set codes are drawn from.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed length of every invite code.
	CodeLength = 6
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Normalize uppercases and trims an invite code for lookup and storage.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidFormat reports whether code is, after normalization, exactly six
// characters from [A-Z0-9].
func IsValidFormat(code string) bool {
	return codePattern.MatchString(strings.ToUpper(code))
}

// generateCode draws CodeLength independent uniform samples from the alphabet.
func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random sample: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
