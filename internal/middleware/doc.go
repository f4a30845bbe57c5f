// Package middleware provides HTTP middleware for the pipeline API.
//
// It includes request logging in W3C Extended Log Format and Prometheus
// request metrics, with filtering so health probes do not drown the logs.
package middleware
