// Package httpclient builds the HTTP client used to reach the Telegram Bot
// API, with optional HTTP or SOCKS5 proxy support.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// ErrUnsupportedProxyScheme is returned for proxy URLs that are neither
// http(s) nor socks5.
var ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")

// Options configures the HTTP client.
type Options struct {
	// Timeout for HTTP requests (default: 30s). Long polling needs this to
	// exceed the poll timeout.
	Timeout time.Duration
	// Proxy is an http://, https:// or socks5:// URL. Empty falls back to
	// HTTP_PROXY, HTTPS_PROXY and NO_PROXY from the environment.
	Proxy string
	// NoProxy lists hosts that bypass an explicit Proxy.
	NoProxy string
}

// New creates a new HTTP client with optional proxy support.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Proxy != "" {
		if err := configureProxy(transport, opts.Proxy, opts.NoProxy); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}, nil
}

func configureProxy(transport *http.Transport, rawURL, noProxy string) error {
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse proxy URL: %w", err)
	}

	switch strings.ToLower(proxyURL.Scheme) {
	case "socks5", "socks5h":
		return configureSocks5Proxy(transport, proxyURL, noProxy)
	case "http", "https":
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if shouldBypassProxy(req.URL.Host, noProxy) {
				return nil, nil
			}
			return proxyURL, nil
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProxyScheme, proxyURL.Scheme)
	}
}

// configureSocks5Proxy routes every connection through a SOCKS5 dialer.
func configureSocks5Proxy(transport *http.Transport, proxyURL *url.URL, noProxy string) error {
	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{
			User:     proxyURL.User.Username(),
			Password: password,
		}
	}

	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, direct)
	if err != nil {
		return fmt.Errorf("create SOCKS5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return errors.New("SOCKS5 dialer does not support contexts")
	}

	transport.Proxy = nil
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if shouldBypassProxy(addr, noProxy) {
			return direct.DialContext(ctx, network, addr)
		}
		return contextDialer.DialContext(ctx, network, addr)
	}

	return nil
}

// shouldBypassProxy checks if a host should bypass the proxy.
func shouldBypassProxy(host string, noProxy string) bool {
	if noProxy == "" {
		return false
	}

	hostOnly, _, err := net.SplitHostPort(host)
	if err != nil {
		hostOnly = host
	}
	hostOnly = strings.ToLower(hostOnly)

	for _, pattern := range strings.Split(noProxy, ",") {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
			continue
		case pattern == "*", hostOnly == pattern:
			return true
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(hostOnly, pattern) {
				return true
			}
		case strings.HasSuffix(hostOnly, "."+pattern):
			return true
		}
	}

	return false
}

// ProxyInfo describes the proxy settings for logs, with credentials masked.
func ProxyInfo(opts Options) string {
	if opts.Proxy == "" {
		return "environment"
	}

	info := maskProxyURL(opts.Proxy)
	if opts.NoProxy != "" {
		info += " (no_proxy: " + opts.NoProxy + ")"
	}
	return info
}

// maskProxyURL masks credentials in a proxy URL for display.
func maskProxyURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid proxy URL]"
	}

	if u.User != nil {
		username := u.User.Username()
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(username, "****")
		}
	}

	return u.String()
}
