// Package api implements the itemkeeper HTTP API.
//
// This package provides:
//   - Login, current-identity and optional registration endpoints
//   - Owner-scoped item CRUD behind a bearer token gate
//   - The caller's own audit trail
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, body limit)
//
// # Request pipeline
//
// Global middleware runs first. Protected routes then pass the auth gate,
// which verifies the bearer token and stores the claims in the request
// context exactly once. Handlers return an error instead of writing
// failures themselves; Server.handle turns that error into the uniform
// envelope:
//
//	{"success": false, "code": "not_found", "message": "Item not found"}
//
// The gate answers every rejected token with one of two messages,
// "Missing or invalid Authorization header" or "Invalid or expired token".
// Which check failed is only visible in debug logs and metrics.
//
// # Ownership
//
// Every item operation is keyed by (id, caller). An item owned by someone
// else is reported as 404, exactly like one that does not exist.
package api
