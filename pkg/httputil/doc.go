// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, and the middleware chain shared by every route.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteNotFoundError(w, "principal not found")
//	httputil.WriteConflict(w, "license capacity exceeded")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req users.CreateUserRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
// The middleware chain tags each request with a generated request id,
// recovers from handler panics, and records request counts and latencies.
package httputil
