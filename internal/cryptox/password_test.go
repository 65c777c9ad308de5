package cryptox

import (
	"bytes"
	"testing"
)

func TestGenerateSalt_LengthAndUniqueness(t *testing.T) {
	a := GenerateSalt()
	b := GenerateSalt()
	if len(a) != saltLength || len(b) != saltLength {
		t.Fatalf("unexpected salt lengths: %d, %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two generated salts are identical")
	}
}

func TestHashPassword_Deterministic(t *testing.T) {
	salt := GenerateSalt()
	h1 := HashPassword([]byte("s3cret"), salt)
	h2 := HashPassword([]byte("s3cret"), salt)
	if !bytes.Equal(h1, h2) {
		t.Fatalf("hash is not deterministic for fixed inputs")
	}
	if len(h1) != hashLength {
		t.Fatalf("unexpected hash length: %d", len(h1))
	}
}

func TestHashPassword_SaltMatters(t *testing.T) {
	h1 := HashPassword([]byte("s3cret"), GenerateSalt())
	h2 := HashPassword([]byte("s3cret"), GenerateSalt())
	if bytes.Equal(h1, h2) {
		t.Fatalf("same password with different salts produced equal hashes")
	}
}

func TestVerifyPassword(t *testing.T) {
	salt := GenerateSalt()
	stored := HashPassword([]byte("correct horse"), salt)

	if !VerifyPassword([]byte("correct horse"), salt, stored) {
		t.Fatalf("correct password did not verify")
	}
	if VerifyPassword([]byte("battery staple"), salt, stored) {
		t.Fatalf("wrong password verified")
	}
	if VerifyPassword([]byte("correct horse"), GenerateSalt(), stored) {
		t.Fatalf("wrong salt verified")
	}
}

func TestVerifyPasswordVersion_UnknownVersion(t *testing.T) {
	salt := GenerateSalt()
	stored := HashPassword([]byte("pw"), salt)

	if !VerifyPasswordVersion([]byte("pw"), salt, stored, HashVersion) {
		t.Fatalf("current version did not verify")
	}
	if VerifyPasswordVersion([]byte("pw"), salt, stored, 99) {
		t.Fatalf("unknown hash version must never verify")
	}
}
