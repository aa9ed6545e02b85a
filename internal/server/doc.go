// Package server implements the HTTP server and handlers of the newsletter
// service. It wires the routes to their dependencies (subscriber store,
// readiness pinger, welcome notifier) and exposes lifecycle helpers used by
// tests and the production binary.
package server
