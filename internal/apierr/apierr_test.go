package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusAndCodeMapping(t *testing.T) {
	cause := errors.New("boom")
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not_found", NotFound(cause), http.StatusNotFound, CodeNotFound},
		{"conflict", Conflict(cause), http.StatusConflict, CodeConflict},
		{"invalid", Invalid(cause), http.StatusBadRequest, CodeInvalid},
		{"unauthorized", Unauthorized(cause), http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", Forbidden(cause), http.StatusForbidden, CodeForbidden},
		{"transient", Transient(cause), http.StatusServiceUnavailable, CodeTransient},
		{"internal", Internal(cause), http.StatusInternalServerError, CodeInternal},
		{"plain_error_defaults", cause, http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.wantStatus {
				t.Fatalf("StatusOf=%d, want %d", got, tc.wantStatus)
			}
			if got := CodeOf(tc.err); got != tc.wantCode {
				t.Fatalf("CodeOf=%q, want %q", got, tc.wantCode)
			}
		})
	}
}

func TestWrappedErrorsSurviveFmtWrapping(t *testing.T) {
	inner := Transient(errors.New("store unavailable"))
	wrapped := fmt.Errorf("reconcile purchase: %w", inner)

	if !IsRetryable(wrapped) {
		t.Fatal("wrapped transient error should stay retryable")
	}
	if StatusOf(wrapped) != http.StatusServiceUnavailable {
		t.Fatalf("StatusOf=%d, want 503", StatusOf(wrapped))
	}
}

func TestErrorStringFallbacks(t *testing.T) {
	if got := (&Error{Status: 404}).Error(); got != "api error (404)" {
		t.Fatalf("got %q", got)
	}
	if got := (&Error{Code: "conflict"}).Error(); got != "conflict" {
		t.Fatalf("got %q", got)
	}
}
