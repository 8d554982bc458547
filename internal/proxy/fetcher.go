package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/imagineos/tapthepost/internal/compose"
)

const (
	DefaultMaxBytes   = 25 * 1024 * 1024
	DefaultTimeout    = 15 * time.Second
	DefaultMirrorBase = "https://fxtwitter.com"

	// status pages are small; anything larger is not worth scanning
	maxPageBytes = 2 * 1024 * 1024
	maxRedirects = 10
)

var (
	DefaultAllowedHosts = []string{"pbs.twimg.com", "abs.twimg.com", "video.twimg.com", "fxtwitter.com", "vxtwitter.com"}
	DefaultStatusHosts  = []string{"x.com", "twitter.com"}
)

// Fetcher retrieves remote images on behalf of the pipeline, enforcing the
// domain whitelist, a size cap and a timeout.
type Fetcher struct {
	HTTPClient *http.Client
	// AllowedHosts match the image host exactly or as a parent domain
	AllowedHosts []string
	// StatusHosts are post hosts whose pages are resolved to their og:image
	StatusHosts []string
	MirrorBase  string
	MaxBytes    int64
	Timeout     time.Duration
}

// NewFetcher creates a fetcher with the default limits
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient:   &http.Client{},
		AllowedHosts: DefaultAllowedHosts,
		StatusHosts:  DefaultStatusHosts,
		MirrorBase:   DefaultMirrorBase,
		MaxBytes:     DefaultMaxBytes,
		Timeout:      DefaultTimeout,
	}
}

// Result is a successfully proxied image
type Result struct {
	URL         string
	ContentType string
	Data        []byte
}

// DataURI encodes the image the way the proxy endpoint returns it
func (r *Result) DataURI() string {
	return compose.DataURI(r.ContentType, r.Data)
}

func proxyErr(status int, format string, args ...any) *compose.ProxyError {
	return &compose.ProxyError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Fetch resolves rawURL to an image and downloads it. Every failure is a
// *compose.ProxyError whose message is meant to be shown to the user as-is.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, proxyErr(http.StatusBadRequest, "Missing 'url' parameter")
	}

	slog.Info("Proxy request", "url", rawURL)

	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Hostname() == "" || (target.Scheme != "http" && target.Scheme != "https") {
		slog.Error("Invalid URL format", "url", rawURL)
		return nil, proxyErr(http.StatusBadRequest, "Invalid URL")
	}

	if slices.Contains(f.StatusHosts, target.Hostname()) {
		resolved, err := f.resolvePost(ctx, target)
		if err != nil {
			return nil, err
		}
		target = resolved
	}

	if !f.allowed(target.Hostname()) {
		slog.Error("Domain restricted", "host", target.Hostname())
		return nil, proxyErr(http.StatusForbidden, "Domain %s not allowed. Please provide a direct X/Twitter image link or post URL.", target.Hostname())
	}

	return f.download(ctx, target.String())
}

func (f *Fetcher) allowed(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, domain := range f.AllowedHosts {
		domain = strings.ToLower(strings.TrimSuffix(domain, "."))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// client returns a copy of the configured client whose redirects are held to
// the same whitelist as the first request.
func (f *Fetcher) client() *http.Client {
	base := http.DefaultClient
	if f.HTTPClient != nil {
		base = f.HTTPClient
	}
	c := *base
	c.CheckRedirect = f.checkRedirect
	return &c
}

// checkRedirect follows a hop only when it stays on the host of the original
// request or lands on a whitelisted host.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return proxyErr(http.StatusBadGateway, "Failed to fetch image: too many redirects")
	}

	host := req.URL.Hostname()
	if len(via) > 0 && strings.EqualFold(host, via[0].URL.Hostname()) {
		return nil
	}
	if f.allowed(host) {
		return nil
	}

	slog.Error("Redirect to restricted domain", "host", host, "from", via[len(via)-1].URL.String())
	return proxyErr(http.StatusForbidden, "Domain %s not allowed. Please provide a direct X/Twitter image link or post URL.", host)
}

func (f *Fetcher) download(ctx context.Context, imageURL string) (*Result, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, proxyErr(http.StatusBadRequest, "Invalid URL")
	}

	slog.Debug("Proxied fetch starting", "url", imageURL)
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Remote server error", "url", imageURL, "status", resp.StatusCode)
		return nil, proxyErr(resp.StatusCode, "Failed to fetch image: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.ContentLength > maxBytes {
		return nil, proxyErr(http.StatusRequestEntityTooLarge, "Image too large")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, transportErr(err)
	}
	if int64(len(data)) > maxBytes {
		return nil, proxyErr(http.StatusRequestEntityTooLarge, "Image too large")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	slog.Info("Proxied fetch complete", "url", imageURL, "bytes", len(data), "content_type", contentType)
	return &Result{URL: imageURL, ContentType: contentType, Data: data}, nil
}

func transportErr(err error) *compose.ProxyError {
	var blocked *compose.ProxyError
	if errors.As(err, &blocked) {
		return blocked
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		slog.Error("Proxied fetch timed out", "err", err)
		return proxyErr(http.StatusGatewayTimeout, "Request timed out")
	}
	slog.Error("Proxied fetch failed", "err", err)
	return proxyErr(http.StatusBadGateway, "Failed to fetch image: %v", err)
}
