package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// accountNameRegex matches GitHub login names: alphanumerics and hyphens,
// not starting with a hyphen. Legacy logins may hold consecutive or
// trailing hyphens.
var accountNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// ValidateAccountName validates an account login before it is placed in a
// request path.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - Maximum length of 39 characters
//   - Only letters, digits and hyphens, starting with a letter or digit
func ValidateAccountName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidAccount, "account name cannot be empty")
	}
	if len(name) > 39 {
		return New(ErrCodeInvalidAccount, "account name too long (max 39 characters): %q", name)
	}
	if !accountNameRegex.MatchString(name) {
		return New(ErrCodeInvalidAccount, "invalid account name: %q", name)
	}
	return nil
}

// repoNameRegex matches the repository part of an owner/name reference.
var repoNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateRepoRef validates an "owner/name" repository reference and returns
// its two halves.
func ValidateRepoRef(ref string) (owner, name string, err error) {
	for _, r := range ref {
		if unicode.IsControl(r) {
			return "", "", New(ErrCodeInvalidRepo, "repository reference contains invalid control characters")
		}
	}

	owner, name, ok := strings.Cut(ref, "/")
	if !ok || strings.Contains(name, "/") {
		return "", "", New(ErrCodeInvalidRepo, "repository must be in owner/name form: %q", ref)
	}
	if err := ValidateAccountName(owner); err != nil {
		return "", "", Wrap(ErrCodeInvalidRepo, err, "invalid repository owner in %q", ref)
	}
	if name == "." || name == ".." || !repoNameRegex.MatchString(name) {
		return "", "", New(ErrCodeInvalidRepo, "invalid repository name in %q", ref)
	}
	return owner, name, nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
