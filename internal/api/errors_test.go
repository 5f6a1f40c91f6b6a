package api_test

import (
	"errors"
	"net/http"
	"testing"

	"cohortaudit/internal/api"
	"cohortaudit/internal/services"
)

func TestErrorResponseStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		status int
	}{
		{services.Wrap(services.ErrInvalidParameter, "params", "alpha", "bad", nil), services.KindInvalidParameter, http.StatusBadRequest},
		{services.Wrap(services.ErrLengthMismatch, "reconcile", "", "lengths differ", nil), services.KindLengthMismatch, http.StatusUnprocessableEntity},
		{services.Wrap(services.ErrInsufficientData, "cluster", "", "too few", nil), services.KindInsufficientData, http.StatusUnprocessableEntity},
		{services.Wrap(services.ErrIngestion, "load", "", "missing file", nil), services.KindIngestion, http.StatusInternalServerError},
		{errors.New("boom"), services.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		resp := api.NewErrorResponse(tc.err)
		if resp.OK {
			t.Fatalf("expected ok=false for %v", tc.err)
		}
		if resp.Kind != tc.kind {
			t.Fatalf("kind for %v: got %q want %q", tc.err, resp.Kind, tc.kind)
		}
		if got := api.StatusFor(resp.Kind); got != tc.status {
			t.Fatalf("status for %q: got %d want %d", resp.Kind, got, tc.status)
		}
		if resp.Error != tc.err.Error() {
			t.Fatalf("expected message %q, got %q", tc.err.Error(), resp.Error)
		}
	}
}
