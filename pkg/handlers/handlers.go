// Package handlers holds the HTTP plumbing shared by the per-resource
// handler packages: JSON responses, problem responses and request binding.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// WriteProblem writes an application/problem+json body.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, title, detail, code string) {
	p := api.Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
	}
	if detail != "" {
		p.Detail = &detail
	}
	if code != "" {
		p.Code = &code
	}
	if r != nil && r.URL != nil && r.URL.Path != "" {
		instance := r.URL.Path
		p.Instance = &instance
	}

	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError maps err to a problem response. Errors outside the taxonomy
// are logged and reported as a bare 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error", "", errs.CodeInternal)
		return
	}

	status, title := statusFor(e.Kind)
	detail := e.Msg
	if e.Kind == errs.KindConfiguration {
		// Misconfiguration is an operator problem; keep the details in the log.
		slog.ErrorContext(r.Context(), "misconfigured ruleset", "path", r.URL.Path, "error", err)
		detail = ""
	}
	WriteProblem(w, r, status, title, detail, e.Code)
}

func statusFor(k errs.Kind) (int, string) {
	switch k {
	case errs.KindValidation:
		return http.StatusUnprocessableEntity, "Validation error"
	case errs.KindNotFound:
		return http.StatusNotFound, "Not Found"
	case errs.KindInsufficientBalance:
		return http.StatusConflict, "Not enough balance"
	case errs.KindConflict:
		return http.StatusConflict, "Conflict"
	case errs.KindAuthorization:
		return http.StatusForbidden, "Forbidden"
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized, "Unauthorized"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// DecodeJSON strictly decodes the request body into dst and validates it.
// Unknown fields and trailing content are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errs.Validation(errs.CodeValidation, "request body is required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Validation(errs.CodeValidation, "invalid request body: %v", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return errs.Validation(errs.CodeValidation, "unexpected content after request body")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errs.Validation(errs.CodeValidation, "%s", describe(verrs))
		}
		return errs.Validation(errs.CodeValidation, "invalid request body: %v", err)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// PageParams binds ?limit&offset. Missing values are zero.
func PageParams(r *http.Request) (limit, offset int, err error) {
	var l, o *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &l); err != nil {
		return 0, 0, errs.Validation(errs.CodeValidation, "invalid limit: %v", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &o); err != nil {
		return 0, 0, errs.Validation(errs.CodeValidation, "invalid offset: %v", err)
	}
	if l != nil {
		limit = *l
		if limit == 0 {
			return 0, 0, errs.Validation(errs.CodeValidation, "limit must be >= 1")
		}
	}
	if o != nil {
		offset = *o
	}
	return limit, offset, nil
}

// HistoryParams binds ?limit&beforeTs.
func HistoryParams(r *http.Request) (limit int, beforeTs *time.Time, err error) {
	var l *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &l); err != nil {
		return 0, nil, errs.Validation(errs.CodeValidation, "invalid limit: %v", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "beforeTs", q, &beforeTs); err != nil {
		return 0, nil, errs.Validation(errs.CodeValidation, "invalid beforeTs: %v", err)
	}
	if l != nil {
		limit = *l
		if limit == 0 {
			return 0, nil, errs.Validation(errs.CodeValidation, "limit must be >= 1")
		}
	}
	return limit, beforeTs, nil
}

// Health answers liveness checks.
func Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.Health{Status: "ok"})
}

// Ready answers readiness checks; check reports whether the backing store is reachable.
func Ready(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				slog.Warn("readiness check failed", "error", err)
				WriteProblem(w, r, http.StatusServiceUnavailable, "Service Unavailable", "backing store is not reachable", "NOT_READY")
				return
			}
		}
		WriteJSON(w, http.StatusOK, api.Health{Status: "ready"})
	}
}
