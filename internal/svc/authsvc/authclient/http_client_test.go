package authclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc/authclient"
)

func TestHTTPClient_Validate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(authclient.TraceIDHeader) != "trace-1" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		switch r.Header.Get(authclient.AuthorizationHeader) {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accountId":7,"name":"alice","role":"admin","active":true}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "Bearer teapot":
			w.WriteHeader(http.StatusTeapot)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := authclient.NewHTTPClient(authclient.HTTPClientConfig{AuthURL: server.URL}, server.Client())
	ctx := context_.WithTraceID(context.Background(), "trace-1")

	tests := []struct {
		name    string
		token   string
		want    domain.Principal
		wantOK  bool
		wantErr error
		// upstream failures count as infrastructure errors
		wantStorage bool
	}{
		{
			name:   "valid token",
			token:  "good",
			want:   domain.Principal{AccountID: 7, Name: "alice", Role: domain.RoleAdmin, Active: true},
			wantOK: true,
		},
		{
			name:  "unknown token",
			token: "stale",
		},
		{
			name:        "server failure",
			token:       "broken",
			wantErr:     authclient.ErrUnexpectedStatus,
			wantStorage: true,
		},
		{
			name:    "unexpected client status",
			token:   "teapot",
			wantErr: authclient.ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := client.Validate(ctx, tt.token)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}

			if errors.Is(err, domain.ErrStorage) != tt.wantStorage {
				t.Errorf("Validate() error = %v, storage kind %v, want %v", err, errors.Is(err, domain.ErrStorage), tt.wantStorage)
			}

			if ok != tt.wantOK {
				t.Errorf("Validate() ok = %v, want %v", ok, tt.wantOK)
			}

			if got != tt.want {
				t.Errorf("Validate() principal = %+v, want %+v", got, tt.want)
			}
		})
	}
}
