package token

import (
	"strings"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	read, err := Generate(ReadTokenBytes)
	if err != nil {
		t.Fatalf("Generate(ReadTokenBytes) %+v", err)
	}
	if len(read) != 24 {
		t.Errorf("read token should be 24 characters, got %d: %q", len(read), read)
	}
	write, err := Generate(WriteTokenBytes)
	if err != nil {
		t.Fatalf("Generate(WriteTokenBytes) %+v", err)
	}
	if len(write) != 48 {
		t.Errorf("write token should be 48 characters, got %d: %q", len(write), write)
	}
}

func TestGenerateAlphanumeric(t *testing.T) {
	for i := 0; i < 200; i++ {
		tok, err := Generate(WriteTokenBytes)
		if err != nil {
			t.Fatalf("Generate %+v", err)
		}
		for _, r := range tok {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			default:
				t.Fatalf("token contains non-alphanumeric %q: %q", r, tok)
			}
		}
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate(ReadTokenBytes)
		if err != nil {
			t.Fatalf("Generate %+v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}

func TestVerify(t *testing.T) {
	secret := "aaaaaaaaaaaaaaaaaaaaaaaa"

	if !Verify(secret, secret) {
		t.Error("equal tokens should verify")
	}
	if Verify("", secret) {
		t.Error("empty token should not verify")
	}
	if Verify(secret[:23], secret) {
		t.Error("shorter token should not verify")
	}
	if Verify(secret+"a", secret) {
		t.Error("longer token should not verify")
	}

	// A single differing byte must fail regardless of position.
	for i := 0; i < len(secret); i++ {
		altered := secret[:i] + "b" + secret[i+1:]
		if Verify(altered, secret) {
			t.Errorf("token differing at byte %d should not verify", i)
		}
	}
}

func TestVerifyCaseSensitive(t *testing.T) {
	secret := "AbCdEfGh"
	if Verify(strings.ToLower(secret), secret) {
		t.Error("case-folded token should not verify")
	}
}

func TestFromAuthorization(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"sometoken", "sometoken"},
		{"Bearer sometoken", "sometoken"},
		{"bearer sometoken", "sometoken"},
		{"BEARER sometoken", "sometoken"},
		{"  Bearer sometoken  ", "sometoken"},
		{"Bearersometoken", "Bearersometoken"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FromAuthorization(tc.header); got != tc.want {
			t.Errorf("FromAuthorization(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
