// Package middleware provides HTTP middleware for the guardian server:
// request ID propagation, structured request logging, and panic
// recovery.
package middleware
