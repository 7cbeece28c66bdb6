package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Screening calls sit on the transaction path, so
// the server bounds header reads and idle keepalives but leaves the write
// deadline to per-handler contexts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
