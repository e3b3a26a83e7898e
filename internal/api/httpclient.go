package api

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client for the membership API using the
// given round tripper (typically a ResilientTransport over the tuned base
// transport). A nil round tripper uses the tuned transport directly.
func NewHTTPClient(rt http.RoundTripper) *http.Client {
	if rt == nil {
		rt = newBaseTransport()
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: rt,
	}
}

// newAPIHTTPClient creates the default tuned client.
func newAPIHTTPClient() *http.Client {
	return NewHTTPClient(nil)
}

// newBaseTransport returns a transport tuned for the membership API.
// Every layer carries an explicit timeout so a hung request can never leave
// a caller waiting indefinitely.
func newBaseTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		MaxConnsPerHost:       10,
		ForceAttemptHTTP2:     true,
	}
}
