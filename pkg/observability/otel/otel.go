//go:build !otelotlp

// Package otelobs holds the optional tracing surface. Default builds compile
// to no-ops; build with -tags otelotlp to export spans over OTLP.
package otelobs

import (
	"context"
	"net/http"
)

// InitTracer is a no-op without the otelotlp build tag.
func InitTracer(serviceName string) func(context.Context) error {
	return func(context.Context) error { return nil }
}

// WrapHTTPHandler returns h unchanged without the otelotlp build tag.
func WrapHTTPHandler(serviceName string, h http.Handler) http.Handler { return h }

// WrapHTTPTransport returns t unchanged without the otelotlp build tag.
func WrapHTTPTransport(t http.RoundTripper) http.RoundTripper { return t }
