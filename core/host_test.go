package core

import "testing"

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		hostport string
		want     string
	}{
		{"acme.talenttune.com", "acme.talenttune.com"},
		{"acme.talenttune.com:8000", "acme.talenttune.com"},
		{"localhost:8000", "localhost"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		if got := SplitHostPort(tt.hostport); got != tt.want {
			t.Errorf("SplitHostPort(%q) = %q; want %q", tt.hostport, got, tt.want)
		}
	}
}

func TestExtractSubdomain(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"three labels", "acme.talenttune.com", "acme"},
		{"four labels", "app.acme.talenttune.com", "app"},
		{"www host", "www.talenttune.com", "www"},
		{"apex", "talenttune.com", ""},
		{"local two-label", "acme.test", "acme"},
		{"local three-label", "app.acme.test", "app"},
		{"single label", "localhost", ""},
		{"non-local two-label", "acme.dev", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSubdomain(tt.host, ".test"); got != tt.want {
				t.Errorf("ExtractSubdomain(%q) = %q; want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestDeriveBaseDomain(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"three labels", "acme.talenttune.com", "talenttune.com"},
		{"apex", "talenttune.com", "talenttune.com"},
		{"local two-label stays whole", "acme.test", "acme.test"},
		{"local three-label", "app.acme.test", "acme.test"},
		{"single label", "localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveBaseDomain(tt.host, ".test"); got != tt.want {
				t.Errorf("DeriveBaseDomain(%q) = %q; want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestBaseDomainFor(t *testing.T) {
	conf := DomainConfig{LocalTLD: ".test"}
	if got := conf.BaseDomainFor("acme.example.com"); got != "example.com" {
		t.Errorf("derived base domain = %q; want %q", got, "example.com")
	}

	conf.BaseDomain = "talenttune.com"
	if got := conf.BaseDomainFor("acme.example.com"); got != "talenttune.com" {
		t.Errorf("configured base domain = %q; want %q", got, "talenttune.com")
	}
}

func TestIsReservedSubdomain(t *testing.T) {
	conf := DomainConfig{ReservedSubdomains: []string{"www", "app", "talenttune"}}
	for _, label := range []string{"www", "app", "talenttune"} {
		if !conf.IsReservedSubdomain(label) {
			t.Errorf("expected %q to be reserved", label)
		}
	}
	if conf.IsReservedSubdomain("acme") {
		t.Error("expected \"acme\" not to be reserved")
	}
}
