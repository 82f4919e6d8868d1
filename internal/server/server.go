package server

import (
	"fmt"
	"net/http"
	"time"
)

// NewHTTPServer binds the status API to the loopback interface only; it has
// a single local consumer.
func NewHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func Run(port int, handler http.Handler) error {
	return NewHTTPServer(port, handler).ListenAndServe()
}
