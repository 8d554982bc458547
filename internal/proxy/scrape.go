package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/imagineos/tapthepost/internal/compose"
)

// resolvePost turns an X/Twitter status link into the post's image URL by
// reading the og:image tag from the mirror's rendering of the same path.
func (f *Fetcher) resolvePost(ctx context.Context, post *url.URL) (*url.URL, error) {
	mirror := strings.TrimRight(f.MirrorBase, "/")
	if mirror == "" {
		mirror = DefaultMirrorBase
	}
	mirrorURL := mirror + post.EscapedPath()

	slog.Info("Resolving post via mirror", "post", post.String(), "mirror", mirrorURL)

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mirrorURL, nil)
	if err != nil {
		return nil, proxyErr(http.StatusInternalServerError, "Failed to scrape post data")
	}
	// mirrors only emit og tags for crawlers
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Discordbot/2.0)")

	resp, err := f.client().Do(req)
	if err != nil {
		slog.Error("Scraping error", "url", mirrorURL, "err", err)
		var redirectErr *compose.ProxyError
		if errors.As(err, &redirectErr) {
			return nil, redirectErr
		}
		return nil, proxyErr(http.StatusInternalServerError, "Failed to scrape post data")
	}
	defer resp.Body.Close()

	content, ok := findMetaImage(io.LimitReader(resp.Body, maxPageBytes))
	if !ok {
		slog.Error("Meta tag extraction failed", "url", mirrorURL)
		return nil, proxyErr(http.StatusNotFound, "Could not find image in this post. Make sure it has an image.")
	}

	resolved, err := url.Parse(content)
	if err != nil || resolved.Hostname() == "" {
		slog.Error("og:image is not an absolute URL", "content", content)
		return nil, proxyErr(http.StatusNotFound, "Could not find image in this post. Make sure it has an image.")
	}

	slog.Info("Resolved image URL", "url", resolved.String())
	return resolved, nil
}

// findMetaImage returns the content of the first og:image meta tag
func findMetaImage(r io.Reader) (string, bool) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "body" {
				return "", false
			}
			if string(name) != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "property", "name":
					property = string(val)
				case "content":
					content = string(val)
				}
			}

			if property == "og:image" && content != "" {
				return content, true
			}
		}
	}
}
