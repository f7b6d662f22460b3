// Package respond writes JSON responses and the error envelope used by every
// HTTP endpoint.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/apperr"
)

// ErrorBody is the error envelope: {message, status, data?}.
type ErrorBody struct {
	Message string              `json:"message"`
	Status  int                 `json:"status"`
	Data    []apperr.FieldError `json:"data,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Body converts err into its envelope. Unclassified errors are logged here
// and reported as internal.
func Body(log logrus.FieldLogger, err error) ErrorBody {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		log.WithError(err).Error("request failed")
	}
	return ErrorBody{
		Message: appErr.Message,
		Status:  appErr.Status(),
		Data:    appErr.Data,
	}
}

// Error writes err as an error envelope.
func Error(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	body := Body(log, err)
	JSON(w, body.Status, body)
}
