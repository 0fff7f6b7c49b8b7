package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
)

var (
	// ErrRouteNotFound is returned for requests that match no route.
	ErrRouteNotFound = errors.New("route not found")
	// ErrMethodNotAllowed is returned when the route exists but not for the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string    `json:"requestId"`
	Error     ErrorBody `json:"error"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is evaluated in order. ErrNotAdministrator must precede
// ErrUnauthorized since it wraps it.
//
//nolint:gochecknoglobals
var errorMappings = []errorMapping{
	{domain.ErrNotAdministrator, http.StatusForbidden, "not_administrator"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrNoSessionToken, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrInvalidCredential, http.StatusUnauthorized, "invalid_credential"},
	{domain.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrNotFoundOrAlreadyClosed, http.StatusNotFound, "loan_not_found_or_closed"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrRouteNotFound, http.StatusNotFound, "not_found"},
	{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method_not_allowed"},
	{domain.ErrDuplicateIdentity, http.StatusConflict, "duplicate_identity"},
	{domain.ErrAlreadyOpen, http.StatusConflict, "already_open"},
	{domain.ErrItemCurrentlyLoaned, http.StatusConflict, "item_currently_loaned"},
	{domain.ErrStorage, http.StatusServiceUnavailable, "storage_unavailable"},
}

// ErrorStatus maps err to an HTTP status code and a stable error code.
// The message is the text of the matched error kind, never the wrapped
// details, so driver messages do not leak to clients.
func ErrorStatus(err error) (status int, code, message string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}

	return http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError)
}

// WriteError writes the error response for err. The request id is the trace id
// of the request, or a fresh UUID if the request was not traced.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := ErrorStatus(err)

	requestID, ok := context_.TraceIDFromContext(r.Context())
	if !ok || requestID == "" {
		requestID = uuid.NewString()
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="lending"`)
	}

	_ = WriteJSON(w, status, ErrorResponse{
		RequestID: requestID,
		Error:     ErrorBody{Code: code, Message: message},
	})
}
