package services

import (
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for every outgoing call. A zero timeout means requests run
// until the remote side settles them.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
