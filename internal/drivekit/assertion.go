package drivekit

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AssertionLifetime is the provider maximum for a JWT-bearer assertion.
const AssertionLifetime = time.Hour

// BuildAssertion signs an RS256 JWT-bearer assertion proving possession of the
// service-account private key. The assertion is valid from now for
// AssertionLifetime; clock skew is not compensated.
func BuildAssertion(serviceAccountEmail string, privateKeyPEM string, audience string, scope string, now time.Time) (string, error) {
	privateKey, parseErr := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalizePrivateKeyPEM(privateKeyPEM)))
	if parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyImport, parseErr)
	}

	issuedAt := now.UTC()
	claims := jwt.MapClaims{
		"iss":   serviceAccountEmail,
		"scope": scope,
		"aud":   audience,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(AssertionLifetime).Unix(),
	}

	assertion, signErr := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if signErr != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, signErr)
	}
	return assertion, nil
}

// normalizePrivateKeyPEM restores real newlines in keys supplied through
// environment variables with literal "\n" sequences.
func normalizePrivateKeyPEM(privateKeyPEM string) string {
	return strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
}
