package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/httputil"
)

// apiError gives an HTTP mapping to errors whose packages do not carry one
type apiError struct {
	status int
	code   string
	err    error
}

func (e *apiError) Error() string     { return e.err.Error() }
func (e *apiError) Unwrap() error     { return e.err }
func (e *apiError) StatusCode() int   { return e.status }
func (e *apiError) ErrorCode() string { return e.code }

var errRouteNotFound = &apiError{status: http.StatusNotFound, code: "not_found", err: errors.New("route not found")}

// writeError maps billing sentinels and hands everything else to
// httputil.WriteServiceError
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteServiceError(w, r, mapError(err))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		return &apiError{status: http.StatusNotFound, code: "plan_not_found", err: err}
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return &apiError{status: http.StatusNotFound, code: "subscription_not_found", err: err}
	case errors.Is(err, billing.ErrNoSubscription):
		return &apiError{status: http.StatusNotFound, code: "no_subscription", err: err}
	case errors.Is(err, billing.ErrSubscriptionConflict):
		return &apiError{status: http.StatusConflict, code: "subscription_conflict", err: err}
	}
	return err
}
