package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"strings"
)

const (
	usernameMaxLength    = 8
	usernameSuffixLength = 5
	usernamePrefixLength = 3
	passwordLength       = 14

	lowerAlnum       = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// DeriveUsername builds a cPanel username candidate: the alnum-filtered
// first 3 characters of the domain, lowercased, plus 5 random lowercase
// alphanumerics, truncated to 8. Uniqueness is the remote API's problem;
// a collision comes back as a createacct rejection.
func DeriveUsername(domain string, r *mathrand.Rand) string {
	var prefix strings.Builder
	for _, c := range strings.ToLower(domain) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			prefix.WriteRune(c)
			if prefix.Len() == usernamePrefixLength {
				break
			}
		}
	}

	var suffix strings.Builder
	for i := 0; i < usernameSuffixLength; i++ {
		suffix.WriteByte(lowerAlnum[r.Intn(len(lowerAlnum))])
	}

	username := prefix.String() + suffix.String()
	if len(username) > usernameMaxLength {
		username = username[:usernameMaxLength]
	}
	return username
}

// GeneratePassword returns a 14-character password over letters, digits
// and a fixed symbol set, from a CSPRNG. These guard real hosting
// accounts, so predictable output is not acceptable.
func GeneratePassword() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < passwordLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
