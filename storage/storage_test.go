package storage

import "testing"

func TestValidRowKey(t *testing.T) {
	cases := map[string]bool{
		"ada@example.com":     true,
		"":                    false,
		"a#b@example.com":     false,
		"a?b@example.com":     false,
		"a/b@example.com":     false,
		`a\b@example.com`:     false,
		"a\tb@example.com":    false,
		"a\u0085@example.com": false,
	}
	for key, want := range cases {
		if got := validRowKey(key); got != want {
			t.Fatalf("validRowKey(%q) = %v, want %v", key, got, want)
		}
	}
}
