package testutil

import (
	"net/http"
	"time"

	"neuramark/pkg/requestcontext"
)

// WithTime pins the request clock, as requesttime.Middleware would.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
