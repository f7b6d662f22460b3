package feed

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/apperr"
	"github.com/ayush/livefeed/backend/internal/assets"
	"github.com/ayush/livefeed/backend/internal/auth"
	"github.com/ayush/livefeed/backend/internal/respond"
)

// DefaultMaxUploadBytes caps an image upload.
const DefaultMaxUploadBytes = 10 << 20

const maxQueryBytes = 1 << 20

// Handler serves the GraphQL endpoint and the image routes.
type Handler struct {
	schema    *graphql.Schema
	svc       *Service
	assets    assets.Store
	maxUpload int64
	log       logrus.FieldLogger
}

func NewHandler(schema *graphql.Schema, svc *Service, store assets.Store, maxUpload int64, log logrus.FieldLogger) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		schema:    schema,
		svc:       svc,
		assets:    store,
		maxUpload: maxUpload,
		log:       log.WithField("component", "feed-handler"),
	}
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// graphqlError extends a GraphQL error with the envelope fields of the REST
// routes.
type graphqlError struct {
	Message   string               `json:"message"`
	Status    int                  `json:"status"`
	Data      []apperr.FieldError  `json:"data,omitempty"`
	Path      []interface{}        `json:"path,omitempty"`
	Locations []gqlerrors.Location `json:"locations,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

// GraphQL executes a query sent as a JSON body (POST) or as URL parameters
// (GET).
func (h *Handler) GraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				respond.Error(w, h.log, apperr.Validation("Invalid variables", nil))
				return
			}
		}
	default:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
			respond.Error(w, h.log, apperr.Validation("Invalid request body", nil))
			return
		}
	}
	if req.Query == "" {
		respond.Error(w, h.log, apperr.Validation("Must provide query string", nil))
		return
	}

	result := h.schema.Exec(r.Context(), req.Query, req.OperationName, req.Variables)

	resp := graphqlResponse{Data: result.Data}
	status := http.StatusOK
	for _, qe := range result.Errors {
		e := h.formatError(qe)
		resp.Errors = append(resp.Errors, e)
		if status == http.StatusOK && isNull(result.Data) {
			status = e.Status
		}
	}
	respond.JSON(w, status, resp)
}

func (h *Handler) formatError(qe *gqlerrors.QueryError) graphqlError {
	if qe.ResolverError == nil {
		return graphqlError{
			Message:   qe.Message,
			Status:    http.StatusBadRequest,
			Locations: qe.Locations,
			Path:      qe.Path,
		}
	}
	body := respond.Body(h.log, qe.ResolverError)
	return graphqlError{
		Message: body.Message,
		Status:  body.Status,
		Data:    body.Data,
		Path:    qe.Path,
	}
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

// UploadImage stores the "image" part of a multipart form. The response
// carries the stored path, which the client then sends as imageUrl. A
// present oldPath is released once the new image is stored, if the caller
// uploaded it and no post uses it.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())
	if !ac.Authenticated() {
		respond.Error(w, h.log, apperr.Unauthorized("Not authenticated"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, h.log, apperr.Validation("File too large", []apperr.FieldError{
				{Field: "image", Message: "exceeds the upload limit"},
			}))
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"message": "No file"})
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if !assets.IsImage(mtype.String()) {
		respond.JSON(w, http.StatusOK, map[string]string{"message": "No file"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	path, err := h.svc.StoreImage(r.Context(), ac, header.Filename, file, header.Size, mtype.String(), r.FormValue("oldPath"))
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{
		"message":  "File stored",
		"filePath": path,
	})
}

// ServeImage streams a stored image.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.assets.Open(r.Context(), assets.Prefix+chi.URLParam(r, "name"))
	if errors.Is(err, assets.ErrNotExist) {
		respond.Error(w, h.log, apperr.NotFound("Image not found"))
		return
	}
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithError(err).Debug("image stream interrupted")
	}
}
