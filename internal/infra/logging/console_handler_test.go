package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
)

func newConsoleLogger(buf *bytes.Buffer, name string, pkgLevels map[string]slog.Level) *slog.Logger {
	handler := &logging.ConsoleHandler{
		Output:    buf,
		Level:     slog.LevelDebug,
		PkgLevels: pkgLevels,
	}

	return slog.New(handler).With("logger", name)
}

func TestConsoleHandler_PkgLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		logger    string
		pkgLevels map[string]slog.Level
		level     slog.Level
		wantLine  bool
	}{
		{
			name:     "no filter passes debug",
			logger:   "svc.ledgersvc.ledger_service",
			level:    slog.LevelDebug,
			wantLine: true,
		},
		{
			name:      "parent filter drops debug",
			logger:    "svc.ledgersvc.ledger_service",
			pkgLevels: map[string]slog.Level{"svc": slog.LevelWarn},
			level:     slog.LevelDebug,
			wantLine:  false,
		},
		{
			name:   "deeper filter wins over parent",
			logger: "svc.ledgersvc.ledger_service",
			pkgLevels: map[string]slog.Level{
				"svc":           slog.LevelWarn,
				"svc.ledgersvc": slog.LevelDebug,
			},
			level:    slog.LevelDebug,
			wantLine: true,
		},
		{
			name:      "filter on sibling is ignored",
			logger:    "repo.lending.sqlite_repository",
			pkgLevels: map[string]slog.Level{"svc": slog.LevelError},
			level:     slog.LevelInfo,
			wantLine:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			log := newConsoleLogger(&buf, tt.logger, tt.pkgLevels)
			log.Log(context.Background(), tt.level, "loan opened", "loan", 7)

			got := strings.Contains(buf.String(), "loan opened")
			if got != tt.wantLine {
				t.Errorf("line written = %v, want %v (output %q)", got, tt.wantLine, buf.String())
			}
		})
	}
}

func TestConsoleHandler_RendersGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := newConsoleLogger(&buf, "svc.catalogsvc", nil)
	log.Info("item added", logging.Group("item", "id", 3, "title", "Dune"))

	out := buf.String()
	for _, want := range []string{"item.id=", "item.title=", "Dune"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestTracingHandler_AttachesCaller(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal *domain.Principal
		want      []string
		wantNot   []string
	}{
		{
			name:      "admin session",
			principal: &domain.Principal{AccountID: 42, Name: "root", Role: domain.RoleAdmin, Active: true},
			want:      []string{"trace.id=", "req-1", "caller.account=", "42", "caller.role=", "admin"},
		},
		{
			name:    "anonymous request",
			want:    []string{"trace.id=", "req-1"},
			wantNot: []string{"caller."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			log := slog.New(logging.NewTracingHandler(&logging.ConsoleHandler{
				Output: &buf,
				Level:  slog.LevelDebug,
			})).With("logger", "svc.ledgersvc")

			ctx := context_.WithTraceID(context.Background(), "req-1")
			if tt.principal != nil {
				ctx = context_.WithPrincipal(ctx, *tt.principal)
			}

			log.InfoContext(ctx, "loan opened")

			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output %q does not contain %q", out, want)
				}
			}

			for _, unwanted := range tt.wantNot {
				if strings.Contains(out, unwanted) {
					t.Errorf("output %q contains %q", out, unwanted)
				}
			}
		})
	}
}
