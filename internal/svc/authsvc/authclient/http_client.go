package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
)

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// ErrUnexpectedStatus is returned when the auth service answers with a status
// other than 200 or 401. Server errors are also joined with domain.ErrStorage.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// AuthURL is the session validation endpoint of a remote lending service.
	// Sessions are validated in-process when empty.
	AuthURL string `env:"AUTH_URL" default:""`
}

// HTTPClient implements AuthClient by asking a remote lending service.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.http_client"),
		cfg:        cfg,
	}
}

// Validate implements AuthClient.Validate by making an HTTP request to the configured
// auth service endpoint. The token is sent in the Authorization header and the
// principal is decoded from the JSON response.
func (ht *HTTPClient) Validate(ctx context.Context, token string) (domain.Principal, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ht.cfg.AuthURL, nil)
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("post: %w", errors.Join(domain.ErrStorage, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return domain.Principal{}, false, nil
	default:
		ht.log.WarnContext(ctx, "unexpected auth response", "status", resp.StatusCode)

		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			err = errors.Join(domain.ErrStorage, err)
		}

		return domain.Principal{}, false, err
	}

	var principal domain.Principal

	if err := jsoniter.NewDecoder(resp.Body).Decode(&principal); err != nil {
		return domain.Principal{}, false, fmt.Errorf("decode principal: %w", err)
	}

	return principal, true, nil
}
