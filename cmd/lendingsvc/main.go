package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mkrupp/homecase-lending/internal/infra/config"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/infra/transport/http"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc/authclient"
	"github.com/mkrupp/homecase-lending/internal/svc/catalogsvc"
	"github.com/mkrupp/homecase-lending/internal/svc/ledgersvc"
)

const (
	appName = "lending"
	svcName = "lendingsvc"
)

type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth       authsvc.AuthConfig          `envPrefix:"AUTH_"`
	AuthHTTP   authsvc.HTTPTransportConfig `envPrefix:"AUTH_HTTP_"`
	AuthClient authclient.HTTPClientConfig `envPrefix:"AUTH_CLIENT_"`
	HTTP       http.HTTPTransportConfig    `envPrefix:"HTTP_"`
	Store      lending.RepositoryConfig    `envPrefix:"STORE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.lendingsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	repoFactory, err := lending.NewRepositoryFactory(cfg.Store)
	if err != nil {
		return fmt.Errorf("new repository factory: %w", err)
	}

	repo, err := repoFactory(ctx)
	if err != nil {
		return fmt.Errorf("new repository: %w", err)
	}
	defer repo.Close()

	authSvc := authsvc.NewAuthService(repo, cfg.Auth)
	if err := authSvc.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	// background workers are joined before the deferred repo.Close runs
	ctx, cancel := context.WithCancel(ctx)
	wait := goBackground(ctx, authSvc.SweepSessions)

	defer wait()
	defer cancel()

	ledgerSvc := ledgersvc.NewLedgerService(repo)
	catalogSvc := catalogsvc.NewCatalogService(repo, ledgerSvc)

	var authClient authclient.AuthClient = authSvc
	if cfg.AuthClient.AuthURL != "" {
		authClient = authclient.NewHTTPClient(cfg.AuthClient, nil)
	}

	router := http.NewRouter(authClient, cfg.HTTP,
		authsvc.NewHTTPTransport(authSvc, cfg.AuthHTTP),
		catalogsvc.NewHTTPTransport(catalogSvc),
		ledgersvc.NewHTTPTransport(ledgerSvc),
	)

	if err := http.ListenAndServe(ctx, router, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// goBackground starts each worker in its own goroutine. The returned wait
// blocks until all of them have returned, which they do once ctx is cancelled.
func goBackground(ctx context.Context, workers ...func(context.Context)) (wait func()) {
	var wg sync.WaitGroup

	for _, worker := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			worker(ctx)
		}()
	}

	return wg.Wait
}
