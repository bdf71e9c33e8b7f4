// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Helpers for JSON encoding/decoding, structured error responses, parameter
// parsing and the generic middleware every route shares.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteNoContent(w)
//
// Domain errors implement HTTPError (and optionally DetailedError and
// HeaderError) and are rendered by WriteServiceError:
//
//	if err := svc.Accept(ctx, token, in); err != nil {
//		httputil.WriteServiceError(w, r, err)
//		return
//	}
//
// Errors that do not implement HTTPError are logged and returned as a generic 500.
//
// # Request Parsing
//
//	var req AcceptInvitationRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication, tenant scope and quota middleware
package httputil
