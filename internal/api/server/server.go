// Package server builds the http.Server that fronts the dispatch API.
package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

// New returns an http.Server serving the dispatch API router on addr.
// Lifecycle (ListenAndServe, Shutdown) is driven by the caller.
func New(addr string, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
