package crawler

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
var ErrInvalidSeed = errors.New("invalid seed URL")

// Normalize returns the canonical form of an absolute URL: the fragment is
// removed and trailing slashes are trimmed. Two URLs are the same crawl
// target exactly when their normalized forms are equal.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", errors.New("url is not absolute: " + rawURL)
	}
	return normalizeParsed(u), nil
}

func normalizeParsed(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return strings.TrimRight(c.String(), "/")
}

// Resolve resolves href against base and normalizes the result.
// It returns false for hrefs that cannot be crawled: mailto:, tel:,
// javascript: and data: links, pure fragments, and non-http(s) targets.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return normalizeParsed(resolved), true
}

// validateSeed parses seed and checks it is an absolute http(s) URL.
func validateSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Join(ErrInvalidSeed, errors.New("scheme must be http or https: "+seed))
	}
	return u, nil
}
