package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
)

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapPages lists the site's registered sitemaps and collects the page
// URLs they contain. A sitemap index is followed one level deep. A sitemap
// that fails to fetch or parse is skipped, not fatal; discovering zero
// sitemaps is left to the caller to treat as an error.
func (c *SearchConsoleClient) SitemapPages(ctx context.Context, token, siteURL string) ([]string, []string, error) {
	sitemaps, err := c.SitemapList(ctx, token, siteURL)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.FromContext(ctx)
	seen := make(map[string]bool)
	var pages []string

	for _, sm := range sitemaps {
		urls, err := c.fetchSitemapURLs(ctx, sm, true)
		if err != nil {
			logger.WithError(err).WithField("sitemap", sm).Warn("Skipping unreadable sitemap")
			continue
		}
		for _, u := range urls {
			if u != "" && !seen[u] {
				seen[u] = true
				pages = append(pages, u)
			}
		}
	}

	return sitemaps, pages, nil
}

// fetchSitemapURLs downloads one sitemap document and returns the page URLs
// it references. followIndex guards against unbounded index recursion.
func (c *SearchConsoleClient) fetchSitemapURLs(ctx context.Context, sitemapURL string, followIndex bool) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, apperrors.NewProviderError("failed to build sitemap request", 0, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError("sitemap fetch failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("sitemap fetch failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var root struct {
		XMLName xml.Name
		sitemapURLSet
		sitemapIndex
	}
	if err := xml.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, apperrors.NewProviderError("malformed sitemap document", resp.StatusCode, err)
	}

	switch root.XMLName.Local {
	case "urlset":
		urls := make([]string, 0, len(root.URLs))
		for _, entry := range root.URLs {
			urls = append(urls, entry.Loc)
		}
		return urls, nil
	case "sitemapindex":
		if !followIndex {
			return nil, nil
		}
		var urls []string
		for _, child := range root.Sitemaps {
			if child.Loc == "" {
				continue
			}
			childURLs, err := c.fetchSitemapURLs(ctx, child.Loc, false)
			if err != nil {
				logging.FromContext(ctx).WithError(err).WithField("sitemap", child.Loc).Warn("Skipping unreadable child sitemap")
				continue
			}
			urls = append(urls, childURLs...)
		}
		return urls, nil
	default:
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("unexpected sitemap root element %q", root.XMLName.Local), resp.StatusCode, nil)
	}
}
