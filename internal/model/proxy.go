// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// HopByHopHeaders are scoped to a single connection and are never relayed.
var HopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyRequest represents a client request to be forwarded to the origin.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Path     string
	RawPath  string // escaped path when it differs from the default encoding of Path
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser
}

// ProxyResponse represents the origin response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}
