package drivekit

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	privateKey, generateErr := rsa.GenerateKey(rand.Reader, 2048)
	if generateErr != nil {
		t.Fatalf("generate key: %v", generateErr)
	}
	der, marshalErr := x509.MarshalPKCS8PrivateKey(privateKey)
	if marshalErr != nil {
		t.Fatalf("marshal key: %v", marshalErr)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// fakePrivateKeyPEM is well-formed PEM whose payload is not a key.
func fakePrivateKeyPEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("not a real private key")}))
}
