package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/apperr"
)

func TestError_ValidationCarriesData(t *testing.T) {
	log, hook := test.NewNullLogger()
	rec := httptest.NewRecorder()

	Error(rec, log, apperr.Validation("Invalid input", []apperr.FieldError{
		{Field: "title", Message: "must be at least 5 characters"},
		{Field: "content", Message: "must be at least 5 characters"},
	}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid input", body.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Len(t, body.Data, 2)
	assert.Empty(t, hook.AllEntries())
}

func TestError_UnclassifiedIsLoggedAndHidden(t *testing.T) {
	log, hook := test.NewNullLogger()
	rec := httptest.NewRecorder()

	Error(rec, log, errors.New("mongo: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
