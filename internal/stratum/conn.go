// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stratum

import (
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/btcsuite/go-socks/socks"
)

// DialOptions configures how the client reaches the stratum server.
type DialOptions struct {
	TLSEnabled bool
	// ProxyAddr, if non-empty, routes the connection through a SOCKS5
	// proxy instead of dialing the server directly.
	ProxyAddr     string
	ProxyUsername string
	ProxyPassword string
}

// tlsHostname derives the certificate hostname from a "host:port"
// address by taking the last two dot-separated tokens of the host
// portion, matching the upstream server's own certificate naming
// convention.
func tlsHostname(serverAddr string) string {
	host := serverAddr
	if idx := strings.LastIndex(serverAddr, ":"); idx != -1 {
		host = serverAddr[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return parts[len(parts)-2] + "." + parts[len(parts)-1]
}

// dial establishes the raw connection to the server, optionally via a
// SOCKS5 proxy, and optionally wrapped in TLS.
func dial(serverAddr string, opts DialOptions) (net.Conn, error) {
	var conn net.Conn
	var err error

	if opts.ProxyAddr != "" {
		proxy := &socks.Proxy{
			Addr:     opts.ProxyAddr,
			Username: opts.ProxyUsername,
			Password: opts.ProxyPassword,
		}
		conn, err = proxy.Dial("tcp", serverAddr)
	} else {
		conn, err = net.DialTimeout("tcp", serverAddr, 10*time.Second)
	}
	if err != nil {
		return nil, connectionError("dial %s: %v", serverAddr, err)
	}

	if !opts.TLSEnabled {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: tlsHostname(serverAddr)})
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, connectionError("TLS handshake with %s: %v", serverAddr, err)
	}
	return tlsConn, nil
}
