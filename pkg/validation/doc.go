// Package validation provides field-level validation for API input.
//
// # Overview
//
// Handlers build an Errors map while checking a request struct and return
// errs.Err(). A non-nil result renders as 422 Unprocessable Entity with the
// failures listed per field:
//
//	errs := validation.Errors{}
//	errs.Email("email", req.Email)
//	errs.Password("password", req.Password)
//	if err := errs.Err(); err != nil {
//		httputil.WriteServiceError(w, r, err)
//		return
//	}
//
// Response body:
//
//	{
//	  "error": "Unprocessable Entity",
//	  "code": "validation_failed",
//	  "message": "validation failed: password: must be at least 8 characters",
//	  "details": {"password": "must be at least 8 characters"}
//	}
//
// Each field keeps only its first failure.
package validation
