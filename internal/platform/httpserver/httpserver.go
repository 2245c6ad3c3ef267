package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. WriteTimeout stays above the router's request
// timeout so handlers can still write their error response.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
