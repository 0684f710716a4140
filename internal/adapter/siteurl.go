package adapter

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/url-indexer/internal/errors"
)

// ConvertToSiteURL converts user input to the provider's site URL format:
// full URLs get a trailing slash, bare domains become sc-domain properties.
func ConvertToSiteURL(input string) string {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if strings.HasSuffix(input, "/") {
			return input
		}
		return input + "/"
	}
	return "sc-domain:" + input
}

// ConvertToHTTP converts a bare domain to an http:// site URL.
func ConvertToHTTP(domain string) string {
	return fmt.Sprintf("http://%s/", domain)
}

// ConvertToHTTPS converts a bare domain to an https:// site URL.
func ConvertToHTTPS(domain string) string {
	return fmt.Sprintf("https://%s/", domain)
}

// ConvertToSCDomain converts an http(s) site URL to sc-domain format.
func ConvertToSCDomain(siteURL string) string {
	domain := strings.TrimPrefix(strings.TrimPrefix(siteURL, "https://"), "http://")
	return "sc-domain:" + strings.ReplaceAll(domain, "/", "")
}

// siteURLVariants returns every site URL spelling that could match the
// provider's registered property for the given input.
func siteURLVariants(siteURL string) []string {
	switch {
	case strings.HasPrefix(siteURL, "https://"):
		return []string{
			siteURL,
			ConvertToHTTP(strings.TrimPrefix(siteURL, "https://")),
			ConvertToSCDomain(siteURL),
		}
	case strings.HasPrefix(siteURL, "http://"):
		return []string{
			siteURL,
			ConvertToHTTPS(strings.TrimPrefix(siteURL, "http://")),
			ConvertToSCDomain(siteURL),
		}
	case strings.HasPrefix(siteURL, "sc-domain:"):
		domain := strings.TrimPrefix(siteURL, "sc-domain:")
		return []string{siteURL, ConvertToHTTP(domain), ConvertToHTTPS(domain)}
	default:
		return []string{
			ConvertToHTTPS(siteURL),
			ConvertToHTTP(siteURL),
			"sc-domain:" + siteURL,
		}
	}
}

// CheckSiteURL resolves a domain to the canonical site URL the service
// account can access. It fails with an access error when none of the
// format variants matches a registered site.
func (c *SearchConsoleClient) CheckSiteURL(ctx context.Context, token, domain string) (string, error) {
	if token == "" {
		return "", apperrors.NewAuthError("access token is empty", nil)
	}
	if domain == "" {
		return "", apperrors.NewInvalidParameterError("domain", "domain is required")
	}

	sites, err := c.Sites(ctx, token)
	if err != nil {
		return "", err
	}

	registered := make(map[string]bool, len(sites))
	for _, s := range sites {
		registered[s] = true
	}

	for _, candidate := range siteURLVariants(strings.TrimSpace(domain)) {
		if registered[candidate] {
			return candidate, nil
		}
	}

	return "", apperrors.NewAccessError("service account has no access to this site")
}

// NormalizeCustomURLs formats user-supplied URLs against the site domain:
// relative paths are joined to the domain, bare domain-prefixed URLs get the
// site's protocol, and full URLs pass through.
func NormalizeCustomURLs(siteURL string, urls []string) []string {
	protocol := "https://"
	if strings.HasPrefix(siteURL, "http://") {
		protocol = "http://"
	}
	domain := strings.TrimPrefix(siteURL, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "sc-domain:")
	domain = strings.TrimSuffix(domain, "/")

	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		switch {
		case strings.HasPrefix(u, "/"):
			out = append(out, protocol+domain+u)
		case strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://"):
			out = append(out, u)
		case strings.HasPrefix(u, domain):
			out = append(out, protocol+u)
		default:
			out = append(out, protocol+domain+"/"+u)
		}
	}
	return out
}
