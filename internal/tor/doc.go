// Package tor routes API traffic through a SOCKS5 proxy.
//
// A dashboard backend is normally reachable directly, but some deployments
// only expose it behind a proxy or as a Tor onion service. Client wraps a
// SOCKS5 dialer and hands out http.Clients that use it; EmbeddedTor starts a
// private Tor daemon through tornago when no proxy is running. CheckBaseURL
// rejects onion backends that would otherwise be dialled directly.
package tor
