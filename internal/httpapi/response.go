package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

const internalErrorMessage = "internal server error"

var errBodyRequired = errors.New("request body is required")

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, code int, data any, msg string) {
	writeJSON(w, code, envelope{StatusCode: code, Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"statusCode": code,
		"message":    msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeAuthError converts a taxonomy error into the wire shape. Internal
// failures are logged and replaced with a generic message.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var e *auth.Error
	if !errors.As(err, &e) {
		e = auth.Internal("unclassified failure", err)
	}
	msg := e.Message
	if e.Kind == auth.KindInternal {
		obs.Logger().WithError(err).
			WithField("request_id", RequestIDFromContext(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
		msg = internalErrorMessage
	}
	writeError(w, r, statusForKind(e.Kind), msg)
}

func statusForKind(k auth.Kind) int {
	switch k {
	case auth.KindBadRequest:
		return http.StatusBadRequest
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body; anything present must still be valid.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(w, r, dst)
	if errors.Is(err, errBodyRequired) {
		return nil
	}
	return err
}
