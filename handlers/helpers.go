package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/middleware"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

const (
	maxJSONBytes      = 1_048_576
	maxMultipartBytes = 10 << 20
	defaultPageSize   = 20
	maxPageSize       = 100
)

type jsonResponse map[string]interface{}

// errBadRequest marks malformed requests (bad JSON, bad ids, bad forms).
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return badRequest("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return badRequest("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return badRequest("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return badRequest("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesError):
			return badRequest("body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return badRequest("%v", err)
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch services.ErrorKind(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "unauthenticated", "invalid_token", "session_expired":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "full", "already_verified", "invalid_transition":
		return http.StatusConflict
	case "expired":
		return http.StatusGone
	case "invalid_code":
		return http.StatusUnprocessableEntity
	case "registration_closed":
		return http.StatusLocked
	case "rate_limited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Responder writes API responses and logs unexpected failures.
type Responder struct {
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

func (rs *Responder) success(w http.ResponseWriter, r *http.Request, status int, body jsonResponse) {
	if body == nil {
		body = jsonResponse{}
	}
	body["success"] = true
	if err := writeJSON(w, status, body, nil); err != nil {
		rs.logger.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

// Error writes err in the API error envelope. It also serves as the middleware ErrorResponder.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := jsonResponse{"success": false}

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		body["kind"] = "validation_error"
		body["message"] = services.ErrValidationFailed.Error()
		body["errors"] = verr.Fields
	case errors.Is(err, errBadRequest):
		body["kind"] = "bad_request"
		body["message"] = strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
	case status == http.StatusInternalServerError:
		rs.logger.ErrorContext(r.Context(), "internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		body["kind"] = "internal_error"
		body["message"] = "the server encountered a problem and could not process your request"
	default:
		body["kind"] = services.ErrorKind(err)
		body["message"] = err.Error()
	}

	if writeErr := writeJSON(w, status, body, nil); writeErr != nil {
		rs.logger.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", writeErr))
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}
	return id, nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, badRequest("limit must be a positive integer")
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, badRequest("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func currentIdentity(r *http.Request) (*models.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return nil, services.ErrUnauthenticated
	}
	return identity, nil
}

// formFile returns the multipart file under field, or nil when it was not sent.
// The caller closes the returned closer.
func formFile(r *http.Request, field string) (*services.FileInput, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, badRequest("invalid %s upload", field)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &services.FileInput{Reader: file, ContentType: contentType}, file, nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		return badRequest("invalid multipart form: %v", err)
	}
	return nil
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}
