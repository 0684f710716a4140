// Package adapter provides HTTP clients for the external search provider:
// URL inspection, indexing submission, site listing and sitemap retrieval.
package adapter

import (
	"context"

	"github.com/url-indexer/internal/types"
)

// TokenSource yields an access token for the provider APIs. Token acquisition
// (JWT signing, token exchange) is owned by the credential subsystem; the
// pipeline only consumes the resulting bearer token.
type TokenSource interface {
	AccessToken(ctx context.Context, clientEmail, privateKey string) (string, error)
}

// Inspector checks the indexing status of a single URL.
type Inspector interface {
	Inspect(ctx context.Context, token, siteURL, inspectionURL string) (types.IndexStatus, error)
}

// Publisher submits a single URL for (re-)indexing.
type Publisher interface {
	Publish(ctx context.Context, token, url string) error
}

// SiteVerifier resolves a domain to the canonical site URL the service
// account can access, failing when the caller lacks access.
type SiteVerifier interface {
	CheckSiteURL(ctx context.Context, token, domain string) (string, error)
}

// SitemapSource discovers the site's sitemaps and the page URLs they contain.
type SitemapSource interface {
	SitemapPages(ctx context.Context, token, siteURL string) (sitemaps []string, pages []string, err error)
}

// StaticTokenSource returns a fixed token. Useful for tests and for callers
// that manage token refresh externally.
type StaticTokenSource struct {
	Token string
}

// AccessToken implements TokenSource.
func (s StaticTokenSource) AccessToken(ctx context.Context, clientEmail, privateKey string) (string, error) {
	return s.Token, nil
}
