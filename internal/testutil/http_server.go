package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// listenIPv4 binds a loopback IPv4 listener on an ephemeral port. The mock
// site and the downloaders both dial 127.0.0.1 URLs, so an IPv6-only
// httptest listener would make every request fail in restricted sandboxes.
func listenIPv4() (net.Listener, error) {
	return net.Listen("tcp4", "127.0.0.1:0")
}

func startServer(ln net.Listener, handler http.Handler) *httptest.Server {
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

// NewHTTPServer serves handler on an IPv4 loopback address, falling back to
// the stock httptest listener when IPv4 binding is unavailable.
func NewHTTPServer(handler http.Handler) *httptest.Server {
	ln, err := listenIPv4()
	if err != nil {
		return httptest.NewServer(handler)
	}
	return startServer(ln, handler)
}

// NewHTTPServerT is NewHTTPServer for tests that cannot proceed without a
// real listener; it skips the test instead of falling back.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := listenIPv4()
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}
	return startServer(ln, handler)
}
