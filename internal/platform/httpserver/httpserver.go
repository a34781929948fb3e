package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with this project's defaults. The job only ever
// serves operational endpoints, so timeouts stay conservative.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
