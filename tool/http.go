package tool

import (
	"net/http"
	"time"
)

// HTTPDoer is the minimal HTTP client surface needed by network-backed tools.
// *http.Client satisfies it; tests substitute a stub.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
