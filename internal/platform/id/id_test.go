package id

import (
	"strings"
	"testing"
)

func TestNewUIDFormat(t *testing.T) {
	uid, err := NewUID()
	if err != nil {
		t.Fatalf("new uid: %v", err)
	}
	if len(uid) != UIDBytes*2 {
		t.Fatalf("expected %d-character uid, got %d", UIDBytes*2, len(uid))
	}
	for _, r := range uid {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in uid", r)
		}
	}
}

func TestNewTokenIDFormat(t *testing.T) {
	tokenID, err := NewTokenID()
	if err != nil {
		t.Fatalf("new token id: %v", err)
	}
	if len(tokenID) != TokenBytes*2 {
		t.Fatalf("expected %d-character token id, got %d", TokenBytes*2, len(tokenID))
	}
	if tokenID != strings.ToLower(tokenID) {
		t.Fatal("expected lowercase token id")
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		uid, err := NewUID()
		if err != nil {
			t.Fatalf("new uid: %v", err)
		}
		if seen[uid] {
			t.Fatalf("duplicate uid %s", uid)
		}
		seen[uid] = true
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		byteLen int
		want    string
		wantErr bool
	}{
		{"lowercases", "00FFAA11223344556677889900AABBCC", 16, "00ffaa11223344556677889900aabbcc", false},
		{"already normal", strings.Repeat("ab", 32), 32, strings.Repeat("ab", 32), false},
		{"wrong length", "abcd", 16, "", true},
		{"not hex", strings.Repeat("zz", 16), 16, "", true},
		{"empty", "", 16, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in, tc.byteLen)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("normalize = %q, want %q", got, tc.want)
			}
		})
	}
}
