package netutil

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// SafeSocket opens a plain TCP connection to ip:port with a bounded dial
// timeout. The caller owns the connection and must close it.
func SafeSocket(ip string, port int, timeout time.Duration) (net.Conn, error) {
	if !ValidIP(ip) && !ValidIP6(ip) {
		return nil, fmt.Errorf("netutil: invalid IP %q", ip)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("netutil: invalid port %d", port)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return net.DialTimeout("tcp", net.JoinHostPort(ip, fmt.Sprint(port)), timeout)
}

// SafeSSLSocket opens a TLS connection to host:port and completes the
// handshake. Certificate verification is disabled: the point is to obtain
// the peer's certificate chain for inspection, expired or mismatched
// certificates included.
func SafeSSLSocket(host string, port int, timeout time.Duration) (*tls.Conn, error) {
	if host == "" {
		return nil, fmt.Errorf("netutil: empty host")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("netutil: invalid port %d", port)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, fmt.Sprint(port)), &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         host,
	})
	if err != nil {
		return nil, fmt.Errorf("netutil: TLS connect to %s:%d: %w", host, port, err)
	}
	return conn, nil
}
