package database

import "testing"

func TestDSN(t *testing.T) {
	cfg := Config{
		Host:     "db",
		Port:     5432,
		User:     "cloudkv",
		Password: "p/w+x=",
		Name:     "cloudkv",
	}
	// Generated credentials contain base64 punctuation; it must be escaped.
	want := "postgres://cloudkv:p%2Fw%2Bx%3D@db:5432/cloudkv?sslmode=disable"
	if got := cfg.dsn(); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}

	cfg.SSLMode = "require"
	want = "postgres://cloudkv:p%2Fw%2Bx%3D@db:5432/cloudkv?sslmode=require"
	if got := cfg.dsn(); got != want {
		t.Errorf("dsn with sslmode = %q, want %q", got, want)
	}
}
