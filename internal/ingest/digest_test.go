package ingest

import "testing"

func TestDigest_KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty input",
			raw:  "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "ascii input",
			raw:  "hello",
			want: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Digest([]byte(tc.raw))
			if got != tc.want {
				t.Errorf("Digest(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestDigest_ByteSensitivity(t *testing.T) {
	a := Digest([]byte("orderNumber,clientId\nP001,CLI-1\n"))
	b := Digest([]byte("orderNumber,clientId\nP001,CLI-1"))

	if a == b {
		t.Errorf("digests of byte-different inputs collided: %s", a)
	}

	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 lowercase hex characters", len(a))
	}
}
