package authsvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-lending/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	// SecureCookie marks the session cookie as HTTPS only
	SecureCookie bool `env:"SECURE_COOKIE" default:"false"`
}

// CredentialsRequest is the body of register and login requests.
type CredentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HTTPTransport handles HTTP requests for the authentication service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
}

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for handling authentication operations.
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
	}
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// RegisterRoutes implements http_.HTTPTransport:
// - POST /auth/register: create a member account
// - POST /auth/login: open a session
// - POST /auth/logout: end the current session
// - POST /auth/validate: resolve a token to its principal
// - GET /admin/accounts: list active accounts
// - POST /admin/accounts/{id}/deactivate: deactivate an account.
func (ht *HTTPTransport) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", ht.HandleRegister)
	r.Post("/auth/login", ht.HandleLogin)
	r.Post("/auth/logout", ht.HandleLogout)
	r.Post("/auth/validate", ht.HandleValidate)
	r.Get("/admin/accounts", ht.HandleListAccounts)
	r.Post("/admin/accounts/{id}/deactivate", ht.HandleDeactivate)
}

func (ht *HTTPTransport) requestLog(r *http.Request) logging.Logger {
	return ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))
}

// HandleRegister processes account registration requests.
// Expects a JSON body with name and password.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "account register failed", "error", err)
			http_.WriteError(w, r, err)
		} else {
			log.DebugContext(ctx, "account registered")
		}
	}(r.Context())

	var req CredentialsRequest
	if err := http_.ReadJSON(w, r, &req); err != nil {
		return err
	}

	log = log.With(logging.Group("account", "name", req.Name))

	id, err := ht.authSvc.Register(r.Context(), req.Name, req.Password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, domain.AccountIDResponse{AccountID: id})
}

// HandleLogin processes login requests.
// Expects a JSON body with name and password. Returns the session grant and
// sets the session cookie.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "account login failed", "error", err)
			http_.WriteError(w, r, err)
		} else {
			log.DebugContext(ctx, "account logged in")
		}
	}(r.Context())

	var req CredentialsRequest
	if err := http_.ReadJSON(w, r, &req); err != nil {
		return err
	}

	log = log.With(logging.Group("account", "name", req.Name))

	grant, err := ht.authSvc.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     http_.SessionCookieName,
		Value:    grant.Token,
		Path:     "/",
		Expires:  time.Unix(grant.ExpiresAt, 0),
		HttpOnly: true,
		Secure:   ht.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return http_.WriteJSON(w, http.StatusOK, grant)
}

// HandleLogout ends the session the request was made with.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "logout failed", "error", err)
			http_.WriteError(w, r, err)
		} else {
			log.DebugContext(ctx, "logged out")
		}
	}(r.Context())

	if _, err := RequireSession(r.Context()); err != nil {
		return err
	}

	token, _ := context_.SessionTokenFromContext(r.Context())
	if err := ht.authSvc.EndSession(r.Context(), token); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     http_.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ht.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return http_.WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: "logged out"})
}

// HandleValidate resolves the bearer token of the request to its principal.
// Used by lending services configured with a remote auth client.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleValidate(w, r)
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "session validation failed", "error", err)
			http_.WriteError(w, r, err)
		} else {
			log.DebugContext(ctx, "session validated")
		}
	}(r.Context())

	// the session middleware already resolved the token
	principal, err := RequireSession(r.Context())
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, principal)
}

// HandleListAccounts lists active accounts. Administrators only.
func (ht *HTTPTransport) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleListAccounts(w, r)
}

func (ht *HTTPTransport) handleListAccounts(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "list accounts failed", "error", err)
			http_.WriteError(w, r, err)
		}
	}(r.Context())

	accounts, err := ht.authSvc.ListActiveAccounts(r.Context())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, accounts)
}

// HandleDeactivate deactivates the account named in the path. Administrators only.
func (ht *HTTPTransport) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDeactivate(w, r)
}

func (ht *HTTPTransport) handleDeactivate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "deactivate account failed", "error", err)
			http_.WriteError(w, r, err)
		}
	}(r.Context())

	// authorization is decided before the path is validated
	if _, err := RequireAdmin(r.Context()); err != nil {
		return err
	}

	id, err := domain.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse account id: %w", err)
	}

	if err := ht.authSvc.Deactivate(r.Context(), id); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: "account deactivated"})
}
