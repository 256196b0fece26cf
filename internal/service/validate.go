package service

import (
	"regexp"
	"strings"

	"github.com/x8080x2/CLS0-sub000/internal/models"
)

// domainPattern accepts two or more DNS labels: alphanumerics and
// inner hyphens, 63 chars max per label.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// ValidateDomain normalizes and checks a domain name. Returns the
// lowercased form.
func ValidateDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", &models.ValidationError{Field: "domain", Reason: "empty"}
	}
	if len(domain) > 253 {
		return "", &models.ValidationError{Field: "domain", Reason: "too long"}
	}
	if !domainPattern.MatchString(domain) {
		return "", &models.ValidationError{Field: "domain", Reason: "not a valid domain name"}
	}
	return domain, nil
}

// ValidateRedirectURL checks the redirect target scheme.
func ValidateRedirectURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &models.ValidationError{Field: "redirect_url", Reason: "empty"}
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", &models.ValidationError{Field: "redirect_url", Reason: "must start with http:// or https://"}
	}
	return rawURL, nil
}
