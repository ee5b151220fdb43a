// Package urlsafety rejects URLs that would cause requests to internal
// network targets or use disallowed schemes.
package urlsafety

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// UnsafeURLError reports a URL rejected by the validator. It is fatal for the
// extraction call and is never retried.
type UnsafeURLError struct {
	URL    string
	Reason string
}

func (e *UnsafeURLError) Error() string {
	return fmt.Sprintf("unsafe url: %s", e.Reason)
}

// Resolver abstracts DNS lookup so tests can stub resolution.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Validator checks URLs before any network call is issued. Hosts are resolved
// on every call; resolution results are never cached, so a name that later
// resolves into a private range is still caught.
type Validator struct {
	resolver Resolver
	logger   *zap.Logger
}

// New builds a Validator using the default DNS resolver.
func New(logger *zap.Logger) *Validator {
	return NewWithResolver(net.DefaultResolver, logger)
}

// NewWithResolver builds a Validator with a custom resolver.
func NewWithResolver(resolver Resolver, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{resolver: resolver, logger: logger}
}

// Validate returns an *UnsafeURLError when the URL must not be fetched.
func (v *Validator) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return v.reject(rawURL, "", "malformed url")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return v.reject(rawURL, parsed.Hostname(), fmt.Sprintf("scheme %q not allowed", scheme))
	}
	host := parsed.Hostname()
	if host == "" {
		return v.reject(rawURL, host, "missing host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if blockedIP(ip) {
			return v.reject(rawURL, host, "host resolves to a private or reserved address")
		}
		return nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return v.reject(rawURL, host, "host does not resolve")
	}
	for _, addr := range addrs {
		if blockedIP(addr.IP) {
			return v.reject(rawURL, host, "host resolves to a private or reserved address")
		}
	}
	return nil
}

func (v *Validator) reject(rawURL, host, reason string) error {
	v.logger.Warn("rejected unsafe url",
		zap.String("host", MaskHost(host)),
		zap.String("reason", reason),
	)
	return &UnsafeURLError{URL: rawURL, Reason: reason}
}

// blockedIP reports whether the address falls into a range this engine must
// never contact: loopback, RFC 1918, link-local, unspecified, or IPv6 ULA.
func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// MaskHost obscures most of a hostname for security log lines.
func MaskHost(host string) string {
	if host == "" {
		return ""
	}
	if len(host) <= 4 {
		return host[:1] + "***"
	}
	return host[:2] + "***" + host[len(host)-2:]
}
