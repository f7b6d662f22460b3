package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Validation("Validation failed", nil), http.StatusUnprocessableEntity},
		{Unauthorized("Not authenticated"), http.StatusUnauthorized},
		{Forbidden("Not authorized"), http.StatusForbidden},
		{NotFound("Cannot find post"), http.StatusNotFound},
		{Conflict("User exists already"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status(), tc.err.Message)
	}
}

func TestAs_FindsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("create post: %w", Forbidden("Not authorized"))

	got := As(wrapped)
	assert.Equal(t, KindForbidden, got.Kind)
	assert.True(t, IsKind(wrapped, KindForbidden))
}

func TestAs_UnclassifiedBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")

	got := As(cause)
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "An error occurred", got.Message)
	assert.ErrorIs(t, got, cause)
}
