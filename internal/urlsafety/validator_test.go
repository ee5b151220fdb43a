package urlsafety

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	addrs map[string][]string
}

func (s *stubResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := s.addrs[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, raw := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(raw)})
	}
	return out, nil
}

func newTestValidator() *Validator {
	return NewWithResolver(&stubResolver{addrs: map[string][]string{
		"example.com": {"93.184.216.34"},
		"localhost":   {"127.0.0.1"},
		"internal.corp": {"10.1.2.3"},
		"dual.example":  {"93.184.216.34", "192.168.1.5"},
	}}, zap.NewNop())
}

func TestValidateAllowsPublicHosts(t *testing.T) {
	v := newTestValidator()
	require.NoError(t, v.Validate(context.Background(), "https://example.com/product/1"))
	require.NoError(t, v.Validate(context.Background(), "http://93.184.216.34/item"))
}

func TestValidateRejectsUnsafeTargets(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name string
		url  string
	}{
		{"ftp scheme", "ftp://example.com/file"},
		{"file scheme", "file:///etc/passwd"},
		{"localhost name", "http://localhost/"},
		{"loopback literal", "http://127.0.0.1/admin"},
		{"metadata endpoint", "http://169.254.169.254/"},
		{"rfc1918 literal", "http://10.0.0.8/"},
		{"rfc1918 172 range", "http://172.16.4.1/"},
		{"rfc1918 192 range", "http://192.168.0.10/"},
		{"ipv6 loopback", "http://[::1]/"},
		{"ipv6 ula", "http://[fc00::1]/"},
		{"unspecified", "http://0.0.0.0/"},
		{"resolves private", "http://internal.corp/"},
		{"one private address among several", "http://dual.example/"},
		{"unresolvable", "http://does-not-exist.invalid/"},
		{"missing host", "http:///path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.url)
			require.Error(t, err)
			var unsafeErr *UnsafeURLError
			require.ErrorAs(t, err, &unsafeErr)
		})
	}
}

func TestValidateResolvesEveryCall(t *testing.T) {
	resolver := &stubResolver{addrs: map[string][]string{
		"flip.example": {"93.184.216.34"},
	}}
	v := NewWithResolver(resolver, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, "http://flip.example/"))

	// A rebinding host must be caught on the next call.
	resolver.addrs["flip.example"] = []string{"127.0.0.1"}
	require.Error(t, v.Validate(ctx, "http://flip.example/"))
}

func TestMaskHost(t *testing.T) {
	require.Equal(t, "", MaskHost(""))
	require.Equal(t, "l***", MaskHost("lo"))
	require.Equal(t, "ex***om", MaskHost("example.com"))
}
