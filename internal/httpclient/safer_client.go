// Package httpclient provides the outbound HTTP client used for remote prompt
// fetches, cloud model backends and the version check. It refuses requests
// that would reach loopback, private or link-local addresses unless the
// caller opts in (the local model backend does).
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/teranos/xalq/errors"
)

// ErrBlocked marks requests refused by SSRF protection
var ErrBlocked = errors.New("request blocked by SSRF protection")

// SaferClient wraps http.Client with SSRF protection
type SaferClient struct {
	*http.Client
	allowedSchemes []string
	allowPrivate   bool
	maxRedirects   int
}

// Option customizes a SaferClient
type Option func(*SaferClient)

// AllowPrivate disables private/loopback address blocking.
// Used for the local model server and for httptest servers in tests.
func AllowPrivate() Option {
	return func(c *SaferClient) { c.allowPrivate = true }
}

// WithMaxRedirects overrides the default limit of 10 redirects
func WithMaxRedirects(n int) Option {
	return func(c *SaferClient) { c.maxRedirects = n }
}

// WithSchemes overrides the allowed URL schemes (default http, https)
func WithSchemes(schemes ...string) Option {
	return func(c *SaferClient) { c.allowedSchemes = schemes }
}

// New creates an HTTP client with SSRF protection
func New(timeout time.Duration, opts ...Option) *SaferClient {
	c := &SaferClient{
		Client:         &http.Client{Timeout: timeout},
		allowedSchemes: []string{"http", "https"},
		maxRedirects:   10,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if !c.allowPrivate {
		c.Transport = guardedTransport()
	}
	return c
}

// WrapClient wraps an existing http.Client without address blocking.
// Tests use it to point adapters at httptest servers.
func WrapClient(client *http.Client) *SaferClient {
	return &SaferClient{
		Client:         client,
		allowedSchemes: []string{"http", "https"},
		allowPrivate:   true,
		maxRedirects:   10,
	}
}

// guardedTransport resolves the host itself and refuses private addresses,
// so DNS rebinding cannot bypass the URL check.
func guardedTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid address")
			}

			addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve host %q", host)
			}
			if len(addrs) == 0 {
				return nil, errors.Newf("no addresses for host %q", host)
			}
			for _, ip := range addrs {
				if isPrivateAddr(ip) {
					return nil, errors.Mark(errors.Newf("private IP address blocked: %s", ip), ErrBlocked)
				}
			}

			// Dial the address we checked, not a second lookup
			return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
		},
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(c.allowedSchemes, scheme) {
		return errors.Mark(errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes), ErrBlocked)
	}

	// http://evil.com@localhost/ style confusion
	if u.User != nil {
		return errors.Mark(errors.New("URL contains userinfo (potential SSRF attempt)"), ErrBlocked)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.Mark(errors.New("URL missing hostname"), ErrBlocked)
	}

	if c.allowPrivate {
		return nil
	}
	if isLocalhost(hostname) {
		return errors.Mark(errors.New("localhost access blocked"), ErrBlocked)
	}
	if ip, err := netip.ParseAddr(hostname); err == nil && isPrivateAddr(ip) {
		return errors.Mark(errors.Newf("private IP address blocked: %s", hostname), ErrBlocked)
	}
	return nil
}

// ValidateURL validates a URL string before creating a request
func (c *SaferClient) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do executes an HTTP request with SSRF protection
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request refused")
	}
	return c.Client.Do(req)
}

// Get issues a GET bound to ctx with optional headers
func (c *SaferClient) Get(ctx context.Context, urlStr string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fec0::/10"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// isPrivateAddr reports whether ip is loopback, private or otherwise not publicly routable
func isPrivateAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" ||
		hostname == "localhost.localdomain" ||
		strings.HasSuffix(hostname, ".localhost")
}
