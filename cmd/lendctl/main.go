package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mkrupp/homecase-lending/internal/infra/config"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
)

const (
	appName = "lending"
	svcName = "lendctl"
)

type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig     `envPrefix:"LOG_"`
	Auth  authsvc.AuthConfig       `envPrefix:"AUTH_"`
	Store lending.RepositoryConfig `envPrefix:"STORE_"`
}

func loadConfig(ctx context.Context) (Config, error) {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	return cfg, nil
}

func main() {
	if err := run(context.Background(), loadConfig, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}
