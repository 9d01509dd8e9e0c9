// Command filepipe runs the file-processing pipeline server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/filepipe/config"
	"github.com/kbukum/filepipe/httpclient"
	"github.com/kbukum/filepipe/keyprovider"
	"github.com/kbukum/filepipe/logger"
	"github.com/kbukum/filepipe/observability"
	"github.com/kbukum/filepipe/pipeline"
	"github.com/kbukum/filepipe/server"
	"github.com/kbukum/filepipe/step"
	"github.com/kbukum/filepipe/tokens"
)

func main() {
	if err := run(); err != nil {
		logger.Error("startup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(cfg.Logger)
	log := logger.New(&cfg.Logger, cfg.Base.Name)
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tracerCfg := observability.DefaultTracerConfig(cfg.Base.Name)
		tracerCfg.Environment = cfg.Base.Environment
		tracerCfg.ServiceVersion = cfg.Base.Version
		if cfg.Tracing.Endpoint != "" {
			tracerCfg.Endpoint = cfg.Tracing.Endpoint
		}
		tp, err := observability.InitTracer(ctx, tracerCfg)
		if err != nil {
			return err
		}
		defer tp.Shutdown(context.Background())
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Limits.HTTPTimeout})
	if err != nil {
		return err
	}

	deps := &step.Deps{
		HTTP:        client,
		KeyHTTP:     &http.Client{Timeout: cfg.Limits.HTTPTimeout},
		Log:         log,
		BufferLimit: cfg.Limits.MaxBufferBytes,
	}
	if cfg.Auth.ServerKeyFile != "" {
		deps.ServerKey = keyprovider.New(cfg.Auth.ServerKeyFile, []byte(cfg.Auth.ServerKeyPassphrase), deps.KeyHTTP)
	}

	store := tokens.NewStore(tokens.StoreConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	defer store.Close()

	executor := pipeline.NewExecutor(step.NewRegistry(), deps, log)
	handler := server.NewHandler(store, tokens.NewCodec(cfg.Auth.JWTSecret), executor, log)

	srv := server.New(cfg.Server, log)
	handler.Register(srv.Engine())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return srv.Stop(context.Background())
}
