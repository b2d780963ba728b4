// Package httpc holds the dial and handshake defaults shared by outbound
// connections. Use these instead of zero-value dialers so timeouts are set.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for outbound connections.
const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultKeepAlive        = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// NetDialer returns a dialer with the default connect timeout and keepalive.
func NetDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

// Proxy resolves the proxy for a request from the environment.
var Proxy = http.ProxyFromEnvironment
