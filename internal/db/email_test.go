package db

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"foo@example.com", "foo@example.com"},
		{"FOO@Example.COM", "foo@example.com"},
		{"  spaced@example.com ", "spaced@example.com"},
		{"Straße@example.com", "strasse@example.com"},
	}
	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmailStable(t *testing.T) {
	once := NormalizeEmail("MiXeD@Example.Com")
	twice := NormalizeEmail(once)
	if once != twice {
		t.Fatalf("normalization not idempotent: %q then %q", once, twice)
	}
}
