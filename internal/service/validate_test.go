package service

import (
	"errors"
	"testing"

	"github.com/x8080x2/CLS0-sub000/internal/models"
)

func TestValidateDomain(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"example.com", "example.com", false},
		{"  Example.COM ", "example.com", false},
		{"sub.example.co.uk", "sub.example.co.uk", false},
		{"my-site.net", "my-site.net", false},
		{"", "", true},
		{"nodots", "", true},
		{"-bad.com", "", true},
		{"bad-.com", "", true},
		{"ex ample.com", "", true},
		{"http://example.com", "", true},
	}

	for _, c := range cases {
		got, err := ValidateDomain(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ValidateDomain(%q): expected error", c.in)
				continue
			}
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("ValidateDomain(%q): expected ValidationError, got %T", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateDomain(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ValidateDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateRedirectURL(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"https://example.org", false},
		{"http://example.org/path?x=1", false},
		{"ftp://example.org", true},
		{"example.org", true},
		{"", true},
	}

	for _, c := range cases {
		_, err := ValidateRedirectURL(c.in)
		if c.wantErr && err == nil {
			t.Errorf("ValidateRedirectURL(%q): expected error", c.in)
		}
		if !c.wantErr && err != nil {
			t.Errorf("ValidateRedirectURL(%q): unexpected error %v", c.in, err)
		}
	}
}
