package drivekit

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBuildAssertionStructure(t *testing.T) {
	t.Parallel()

	privateKeyPEM := testPrivateKeyPEM(t)
	reference := time.Unix(1700000000, 0).UTC()

	assertion, buildErr := BuildAssertion("svc@project.iam.gserviceaccount.com", privateKeyPEM, GoogleTokenURL, ScopeDrive, reference)
	if buildErr != nil {
		t.Fatalf("unexpected error: %v", buildErr)
	}

	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three dot-separated segments, got %d", len(parts))
	}

	headerBytes, headerErr := base64.RawURLEncoding.DecodeString(parts[0])
	if headerErr != nil {
		t.Fatalf("decode header: %v", headerErr)
	}
	var header map[string]string
	if unmarshalErr := json.Unmarshal(headerBytes, &header); unmarshalErr != nil {
		t.Fatalf("unmarshal header: %v", unmarshalErr)
	}
	if header["alg"] != "RS256" || header["typ"] != "JWT" {
		t.Fatalf("expected RS256/JWT header, got %v", header)
	}

	payloadBytes, payloadErr := base64.RawURLEncoding.DecodeString(parts[1])
	if payloadErr != nil {
		t.Fatalf("decode payload: %v", payloadErr)
	}
	var payload struct {
		Issuer    string `json:"iss"`
		Scope     string `json:"scope"`
		Audience  string `json:"aud"`
		IssuedAt  int64  `json:"iat"`
		ExpiresAt int64  `json:"exp"`
	}
	if unmarshalErr := json.Unmarshal(payloadBytes, &payload); unmarshalErr != nil {
		t.Fatalf("unmarshal payload: %v", unmarshalErr)
	}
	if payload.Issuer != "svc@project.iam.gserviceaccount.com" {
		t.Fatalf("unexpected issuer %q", payload.Issuer)
	}
	if payload.Scope != ScopeDrive {
		t.Fatalf("unexpected scope %q", payload.Scope)
	}
	if payload.Audience != GoogleTokenURL {
		t.Fatalf("unexpected audience %q", payload.Audience)
	}
	if payload.IssuedAt != reference.Unix() {
		t.Fatalf("expected iat %d, got %d", reference.Unix(), payload.IssuedAt)
	}
	if payload.ExpiresAt != reference.Add(AssertionLifetime).Unix() {
		t.Fatalf("expected exp %d, got %d", reference.Add(AssertionLifetime).Unix(), payload.ExpiresAt)
	}
}

func TestBuildAssertionSignatureVerifies(t *testing.T) {
	t.Parallel()

	privateKeyPEM := testPrivateKeyPEM(t)
	assertion, buildErr := BuildAssertion("svc@example.com", privateKeyPEM, GoogleTokenURL, ScopeDrive, time.Unix(1700000000, 0))
	if buildErr != nil {
		t.Fatalf("unexpected error: %v", buildErr)
	}

	privateKey, parseKeyErr := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if parseKeyErr != nil {
		t.Fatalf("parse key: %v", parseKeyErr)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithoutClaimsValidation())
	parsed, parseErr := parser.Parse(assertion, func(parsedToken *jwt.Token) (interface{}, error) {
		return &privateKey.PublicKey, nil
	})
	if parseErr != nil || !parsed.Valid {
		t.Fatalf("expected a verifiable signature, got %v", parseErr)
	}
}

func TestBuildAssertionKeyImportError(t *testing.T) {
	t.Parallel()

	_, buildErr := BuildAssertion("svc@example.com", fakePrivateKeyPEM(), GoogleTokenURL, ScopeDrive, time.Now())
	if !errors.Is(buildErr, ErrKeyImport) {
		t.Fatalf("expected ErrKeyImport, got %v", buildErr)
	}
}

func TestBuildAssertionNormalizesEscapedNewlines(t *testing.T) {
	t.Parallel()

	escaped := strings.ReplaceAll(testPrivateKeyPEM(t), "\n", `\n`)
	if _, buildErr := BuildAssertion("svc@example.com", escaped, GoogleTokenURL, ScopeDrive, time.Now()); buildErr != nil {
		t.Fatalf("expected escaped-newline key to import, got %v", buildErr)
	}
}
