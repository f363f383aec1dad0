// Package netutil is the shared capability facade collectors use to reach
// the outside world: HTTP fetching, DNS resolution, raw sockets, and a set
// of pure parsing helpers. Collectors must not perform network I/O through
// any other path.
package netutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// FetchResult is the structured outcome of an HTTP fetch. HTTP error codes
// are not Go errors: a 404 yields Code=404 and a nil Err. Err is set only
// when the transport itself failed, so callers can tell a failed request
// apart from a body that merely failed to parse.
type FetchResult struct {
	Code    int
	Content string
	Headers map[string]string
	Err     error
}

// Ok reports whether the transport succeeded and the server answered 2xx.
func (r *FetchResult) Ok() bool {
	return r.Err == nil && r.Code >= 200 && r.Code < 300
}

// Fetcher performs outbound HTTP requests with the framework's timeout,
// User-Agent and proxy settings applied uniformly.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// FetcherConfig carries the framework options a Fetcher honors.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string

	// SocksType is "4", "5", "HTTP" or "TOR"; empty disables proxying.
	SocksType string
	SocksAddr string
	SocksPort int
	SocksUser string
	SocksPwd  string

	// RequestsPerSecond throttles all requests through this fetcher.
	// Zero means unthrottled.
	RequestsPerSecond float64
}

// NewFetcher builds a Fetcher from the framework options.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	if cfg.SocksType != "" {
		if cfg.SocksAddr == "" {
			return nil, fmt.Errorf("netutil: proxy type %q set but proxy address is blank", cfg.SocksType)
		}
		port := cfg.SocksPort
		if port == 0 {
			switch cfg.SocksType {
			case "HTTP":
				port = 8080
			case "TOR":
				port = 9050
			default:
				port = 1080
			}
		}
		addr := net.JoinHostPort(cfg.SocksAddr, fmt.Sprint(port))

		switch cfg.SocksType {
		case "HTTP":
			proxyURL := &url.URL{Scheme: "http", Host: addr}
			if cfg.SocksUser != "" {
				proxyURL.User = url.UserPassword(cfg.SocksUser, cfg.SocksPwd)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		default: // SOCKS 4 and TOR are served by the SOCKS5 dialer too
			var auth *proxy.Auth
			if cfg.SocksUser != "" {
				auth = &proxy.Auth{User: cfg.SocksUser, Password: cfg.SocksPwd}
			}
			dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("netutil: building SOCKS dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.Dial(network, address)
			}
		}
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		timeout:   timeout,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f, nil
}

// FetchURL performs a GET (or POST when postData is non-empty) and returns a
// structured result. The result is never nil.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string, headers map[string]string, postData string) *FetchResult {
	res := &FetchResult{Headers: make(map[string]string)}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}

	method := http.MethodGet
	var body io.Reader
	if postData != "" {
		method = http.MethodPost
		body = strings.NewReader(postData)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		res.Err = fmt.Errorf("building request for %s: %w", rawURL, err)
		return res
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if postData != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("fetching %s: %w", rawURL, err)
		return res
	}
	defer resp.Body.Close()

	res.Code = resp.StatusCode
	for k := range resp.Header {
		res.Headers[k] = resp.Header.Get(k)
	}

	// Cap body reads so one endless response cannot stall the scan.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		res.Err = fmt.Errorf("reading body of %s: %w", rawURL, err)
		return res
	}
	res.Content = string(data)
	return res
}

// Timeout returns the fetcher's configured request timeout.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}
