package linkkf

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// Fetcher issues browser-like GETs against the site. The target rejects
// generic clients, so every request carries a realistic header set.
type Fetcher struct {
	Client  *http.Client
	Runtime *types.RuntimeConfig
}

// NewFetcher builds a Fetcher with proxy and TLS options applied the same
// way the download engine applies them.
func NewFetcher(runtime *types.RuntimeConfig) *Fetcher {
	transport := &http.Transport{}

	if runtime != nil && runtime.ProxyURL != "" {
		parsedURL, err := url.Parse(runtime.ProxyURL)
		if err != nil {
			utils.Debug("Fetcher: invalid proxy URL %s: %v", runtime.ProxyURL, err)
			transport.Proxy = http.ProxyFromEnvironment
		} else if strings.HasPrefix(parsedURL.Scheme, "socks5") {
			dialer, dialErr := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
			if dialErr != nil {
				utils.Debug("Fetcher: failed to create SOCKS5 dialer: %v", dialErr)
				transport.Proxy = http.ProxyFromEnvironment
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		} else {
			transport.Proxy = http.ProxyURL(parsedURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	if runtime != nil && runtime.SkipTLSVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		Client: &http.Client{
			Timeout:   runtime.GetHTTPTimeout(),
			Transport: transport,
		},
		Runtime: runtime,
	}
}

// browserHeaders applies the header set the site expects from a real browser.
func (f *Fetcher) browserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", f.Runtime.GetUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,"+
		"image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")
	if referer != "" {
		req.Header.Set("Referer", referer)
	} else {
		req.Header.Set("Origin", strings.TrimSuffix(f.Runtime.GetRefererOrigin(), "/"))
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

// FetchPage GETs a page and returns its body as text. Connection failures
// and non-2xx statuses are retried with fixed backoff up to the configured
// attempt count before surfacing a network error.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL, referer string) (string, error) {
	var lastErr error
	attempts := f.Runtime.GetMaxRetries()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			utils.Debug("FetchPage: retry %d/%d for %s", attempt, attempts-1, pageURL)
			select {
			case <-ctx.Done():
				return "", types.NewError(types.KindCancelled, "fetch page", ctx.Err())
			case <-time.After(f.Runtime.GetRetryBackoff() * time.Duration(attempt)):
			}
		}

		body, err := f.fetchOnce(ctx, pageURL, referer)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", types.NewError(types.KindCancelled, "fetch page", ctx.Err())
		}
		lastErr = err
	}

	return "", types.NewError(types.KindNetwork, "fetch page", lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	f.browserHeaders(req, referer)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("FetchPage: error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
