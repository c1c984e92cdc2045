// Package middleware provides HTTP middleware for the thumbcache indexer.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request instrumentation
//   - Configurable filtering for health check endpoints
package middleware
