package app

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// VerifyCredentials checks a submitted username and password against the
// configured admin secrets. Both comparisons always run and neither result is
// reported separately, so a caller cannot tell which one failed.
//
// When expectedPass is a bcrypt hash it is checked with bcrypt; otherwise both
// values are compared in constant time. A length mismatch fails without
// comparing contents, which only reveals whether the lengths are equal.
func VerifyCredentials(providedUser, providedPass, expectedUser, expectedPass string) bool {
	userOK := ConstantTimeCompare(providedUser, expectedUser)

	var passOK bool
	if IsBcryptHash(expectedPass) {
		passOK = bcrypt.CompareHashAndPassword([]byte(expectedPass), []byte(providedPass)) == nil
	} else {
		passOK = ConstantTimeCompare(providedPass, expectedPass)
	}

	return userOK && passOK && expectedUser != "" && expectedPass != ""
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsBcryptHash reports whether s looks like a bcrypt hash.
func IsBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
