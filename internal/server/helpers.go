package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// Set for partial_failure: the steps that stayed committed and the step that failed.
	Committed []string `json:"committed,omitempty"`
	Failed    string   `json:"failed,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// errorStatus maps a service error onto an HTTP status and a stable code.
// A partial failure wraps the cause that triggered compensation, so it is
// matched before the cause's own kind.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrPartialFailure):
		return http.StatusInternalServerError, "partial_failure"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, common.ErrNegativeBalance):
		return http.StatusUnprocessableEntity, "negative_balance"
	case errors.Is(err, common.ErrLoanClosed):
		return http.StatusUnprocessableEntity, "loan_closed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// WriteServiceError writes err with the status its kind maps to.
// Server-side failures are logged; client errors are not.
func (s *Server) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("code", code).Msg("Request failed")
	}
	resp := ErrorResponse{Error: err.Error(), Code: code}
	var pf *saga.PartialFailure
	if errors.As(err, &pf) {
		resp.Committed = pf.Committed
		resp.Failed = pf.Failed
	}
	WriteJSON(w, status, resp)
}

// WriteWarnings writes data with any non-fatal warnings attached.
func WriteWarnings(w http.ResponseWriter, statusCode int, key string, data interface{}, warnings []models.Warning) {
	resp := map[string]interface{}{}
	if key != "" {
		resp[key] = data
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	} else {
		resp["warnings"] = []models.Warning{}
	}
	WriteJSON(w, statusCode, resp)
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), "invalid_json")
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/loans/{id}/pay, calling PathParam(r, "/api/loans/", "/pay")
// extracts the {id} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix, return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// splitPath returns the id and sub-path below prefix: "/api/loans/abc/pay"
// with prefix "/api/loans/" gives ("abc", "pay").
func splitPath(r *http.Request, prefix string) (string, string) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}
	return id, subpath
}

// queryInt parses an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.Invalid(key, "must be an integer")
	}
	return n, nil
}

// paymentInput accepts a payment source either structured or as the legacy
// paymentMode tag with bankId/cardId.
type paymentInput struct {
	Payment     *models.PaymentSource `json:"payment,omitempty"`
	PaymentMode string                `json:"paymentMode,omitempty"`
	BankID      string                `json:"bankId,omitempty"`
	CardID      string                `json:"cardId,omitempty"`
}

func (p paymentInput) present() bool {
	return p.Payment != nil || p.PaymentMode != ""
}

// source resolves the input to a PaymentSource.
func (p paymentInput) source() (models.PaymentSource, error) {
	if p.Payment != nil {
		if err := p.Payment.Validate(); err != nil {
			return models.PaymentSource{}, common.Invalid("payment", err.Error())
		}
		return *p.Payment, nil
	}
	src, err := models.ParsePaymentMode(p.PaymentMode, p.BankID, p.CardID)
	if err != nil {
		return models.PaymentSource{}, common.Invalid("paymentMode", err.Error())
	}
	return src, nil
}

// optionalSource is source for inputs where no payment means no money moves.
func (p paymentInput) optionalSource() (*models.PaymentSource, error) {
	if !p.present() {
		return nil, nil
	}
	src, err := p.source()
	if err != nil {
		return nil, err
	}
	return &src, nil
}
