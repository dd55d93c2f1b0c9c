package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"support-backend/internal/chat"
	"support-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

const (
	internalErrorMessage = "An internal error occurred"
	timeoutErrorMessage  = "Request timed out"
)

type codedError struct {
	err     error
	code    int
	details any
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

func fieldValidationError(field, message string) error {
	return &codedError{
		err:     errors.New("Validation failed"),
		code:    http.StatusBadRequest,
		details: []api.FieldError{{Field: field, Message: message}},
	}
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)

		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return data, fieldValidationError(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
		}
		if errors.Is(err, io.EOF) {
			return data, fieldValidationError("body", "Request body is required")
		}
		return data, fieldValidationError("body", "Request body must be valid JSON")
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&data, r.Form); err != nil {
		slog.Error("error decoding query params", "error", err)

		var multi schema.MultiError
		if errors.As(err, &multi) && len(multi) > 0 {
			fields := make([]api.FieldError, 0, len(multi))
			for _, field := range slices.Sorted(maps.Keys(multi)) {
				fields = append(fields, api.FieldError{Field: field, Message: fmt.Sprintf("invalid value for query parameter '%s'", field)})
			}
			return data, &codedError{err: errors.New("Validation failed"), code: http.StatusBadRequest, details: fields}
		}
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

// Responder writes handler results in the success/error envelope. Error causes
// are only exposed when Development is set.
type Responder struct {
	Development bool
}

func (rs Responder) RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			rs.WriteError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, http.StatusOK, api.Response[any]{Success: true, Data: res})
	}
}

func convertFieldErrors(fields []chat.FieldError) []api.FieldError {
	out := make([]api.FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, api.FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}

func (rs Responder) describe(err error) (int, api.ErrorBody) {
	var internalDetails any
	if rs.Development {
		internalDetails = err.Error()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, api.ErrorBody{Message: timeoutErrorMessage, Details: internalDetails}
	}

	var cerr *chat.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case chat.KindValidation:
			return http.StatusBadRequest, api.ErrorBody{Message: cerr.Message, Details: convertFieldErrors(cerr.Fields)}
		case chat.KindNotFound:
			return http.StatusNotFound, api.ErrorBody{Message: cerr.Message}
		case chat.KindDatabase:
			if cerr.KnownRequest() {
				return http.StatusBadRequest, api.ErrorBody{Message: cerr.Message}
			}
			return http.StatusInternalServerError, api.ErrorBody{Message: cerr.Message, Details: internalDetails}
		}
	}

	var coded *codedError
	if errors.As(err, &coded) && coded.code < http.StatusInternalServerError {
		return coded.code, api.ErrorBody{Message: coded.err.Error(), Details: coded.details}
	}

	return http.StatusInternalServerError, api.ErrorBody{Message: internalErrorMessage, Details: internalDetails}
}

func (rs Responder) WriteError(w http.ResponseWriter, err error) {
	code, body := rs.describe(err)
	if code >= http.StatusInternalServerError {
		slog.Error("internal server error received in endpoint", "error", err)
	}
	WriteJsonResponse(w, code, api.Response[any]{Success: false, Error: &body})
}

func WriteJsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

func URLParam(r *http.Request, key string) (string, error) {
	param := chi.URLParam(r, key)
	if len(param) == 0 {
		return "", CodedErrorf(http.StatusBadRequest, "missing {%v} url parameter", key)
	}
	return param, nil
}
