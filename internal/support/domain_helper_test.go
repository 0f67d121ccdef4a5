package support

import "testing"

func TestRegisteredDomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"a.b.c.example.co.uk", "example.co.uk"},
		{"EXAMPLE.COM.", "example.com"},
		{"bit.ly", "bit.ly"},
	}

	for _, tc := range cases {
		got, err := RegisteredDomain(tc.host)
		if err != nil {
			t.Errorf("RegisteredDomain(%q) returned error: %v", tc.host, err)
			continue
		}
		if got != tc.want {
			t.Errorf("RegisteredDomain(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestRegisteredDomainRejectsBareTLD(t *testing.T) {
	if _, err := RegisteredDomain("com"); err == nil {
		t.Fatal("expected error for a bare TLD")
	}
	if _, err := RegisteredDomain(""); err == nil {
		t.Fatal("expected error for an empty host")
	}
}

func TestSubdomainDepth(t *testing.T) {
	cases := []struct {
		host        string
		registrable string
		want        int
	}{
		{"example.com", "example.com", 0},
		{"www.example.com", "example.com", 1},
		{"login.secure.www.example.com", "example.com", 3},
	}

	for _, tc := range cases {
		if got := SubdomainDepth(tc.host, tc.registrable); got != tc.want {
			t.Errorf("SubdomainDepth(%q, %q) = %d, want %d", tc.host, tc.registrable, got, tc.want)
		}
	}
}
