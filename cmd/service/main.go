package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avelins/traintrack/internal"
	"github.com/avelins/traintrack/internal/config"
	"github.com/avelins/traintrack/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "traintrack-service",
	})

	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	backendAPIKey := os.Getenv("TRAINTRACK_BACKEND_API_KEY")
	if backendAPIKey == "" {
		log.Errorf("backend api key not set, use TRAINTRACK_BACKEND_API_KEY env var to set it")
	}

	redisPassword := os.Getenv("TRAINTRACK_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use TRAINTRACK_REDIS_PASS")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	service, err := internal.NewService(ctx, internal.NewServiceParams{
		Config:        cfg,
		BackendAPIKey: backendAPIKey,
		RedisPassword: redisPassword,
	})
	if err != nil {
		log.Fatalf("new service: %s", err)
	}

	service.Start(ctx)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	service.GracefulShutdown()
}
