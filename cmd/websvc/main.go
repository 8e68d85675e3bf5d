package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/webauth/internal/infra/config"
	"github.com/mkrupp/webauth/internal/infra/logging"
	"github.com/mkrupp/webauth/internal/infra/transport/http"
	"github.com/mkrupp/webauth/internal/repo/account"
	"github.com/mkrupp/webauth/internal/repo/session"
	"github.com/mkrupp/webauth/internal/svc/websvc"
)

const (
	appName = "demo"
	svcName = "websvc"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig                  `envPrefix:"LOG_"`
	Account  websvc.AccountConfig                  `envPrefix:"ACCOUNT_"`
	Session  websvc.SessionConfig                  `envPrefix:"SESSION_"`
	HTTP     websvc.HTTPTransportConfig            `envPrefix:"HTTP_"`
	Accounts account.SQLiteAccountRepositoryConfig `envPrefix:"ACCOUNTS_"`
	Sessions session.SQLiteSessionRepositoryConfig `envPrefix:"SESSIONS_"`
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

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.websvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	accountSvc, err := websvc.NewAccountService(
		account.SQLiteAccountRepositoryFactory(cfg.Accounts),
		websvc.NewBcryptHasher(cfg.Account.BcryptCost),
		cfg.Account,
	)
	if err != nil {
		return fmt.Errorf("new account service: %w", err)
	}
	defer accountSvc.Close()

	sessionMgr, err := websvc.NewSessionManager(
		session.SQLiteSessionRepositoryFactory(cfg.Sessions),
		account.SQLiteAccountRepositoryFactory(cfg.Accounts),
		cfg.Session,
	)
	if err != nil {
		return fmt.Errorf("new session manager: %w", err)
	}
	defer sessionMgr.Close()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()

	go sessionMgr.Sweep(sweepCtx)

	httpTransport, err := websvc.NewHTTPTransport(accountSvc, sessionMgr, cfg.HTTP)
	if err != nil {
		return fmt.Errorf("new http transport: %w", err)
	}

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
