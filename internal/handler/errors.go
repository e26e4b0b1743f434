package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

var (
	errRouteNotFound    = apperr.NotFound("route not found")
	errMethodNotAllowed = &httpError{status: http.StatusMethodNotAllowed, code: "method_not_allowed", msg: "method not allowed"}
)

// httpError is a transport-level failure that has no domain kind.
type httpError struct {
	status int
	code   string
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes {"code","message","fields"}.
// Internal errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		code   = apperr.KindInternal.String()
		msg    = "internal server error"
		fields map[string]string
	)

	var he *httpError
	var ae *apperr.Error
	switch {
	case errors.As(err, &he):
		status, code, msg = he.status, he.code, he.msg
	case errors.As(err, &ae) && ae.Kind != apperr.KindInternal:
		status, code, msg, fields = statusOf(ae.Kind), ae.Kind.String(), ae.Message, ae.Fields
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(code)
		e.FieldStart("message")
		e.Str(msg)
		if len(fields) > 0 {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			e.FieldStart("fields")
			e.ObjStart()
			for _, k := range keys {
				e.FieldStart(k)
				e.Str(fields[k])
			}
			e.ObjEnd()
		}
		e.ObjEnd()
	})
}
