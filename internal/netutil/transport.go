package netutil

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// NewDialContext returns a dial function that logs whether the backend is a
// local or a remote host before dialing with the system resolver.
func NewDialContext(logger *logrus.Logger) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if IsLocalOrPrivateHost(host) {
			logger.WithField("host", host).Debug("Connecting to local/private backend")
		} else {
			logger.WithField("host", host).Debug("Connecting to remote backend")
		}
		return dialer.DialContext(ctx, network, addr)
	}
}

// IsLocalOrPrivateHost checks if a hostname is localhost or a private network address
func IsLocalOrPrivateHost(host string) bool {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".lan") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// TLSConfig returns the client TLS configuration for backend transports.
// Certificate handling is owned by the identity layer, so verification can
// be switched off for bench setups with self-signed backends.
func TLSConfig(insecure bool, logger *logrus.Logger) *tls.Config {
	if insecure {
		logger.Warn("TLS certificate verification is disabled")
	}
	return &tls.Config{
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS12,
	}
}
