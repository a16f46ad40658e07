package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agent-navigator/internal/logger"
	"agent-navigator/pathservice"
	"agent-navigator/server"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the route planning HTTP server",
		Long:  "Load or build a navigation graph and serve route queries over HTTP.",
		RunE:  serve,
		Args:  cobra.NoArgs,
	}

	defaultConfig := DefaultConfig()
	flags := cmd.Flags()
	addCommonFlags(flags)

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	flags.Duration("poll-interval", defaultConfig.PollInterval, "the shortest interval between polls for completed results")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindCommonFlags(flags)

		MustBindPFlag("http.addr", flags.Lookup("http-addr"))
		MustBindEnv("http.addr", "NAVPLANNER_HTTP_ADDR")

		MustBindPFlag("poll.interval", flags.Lookup("poll-interval"))
		MustBindEnv("poll.interval", "NAVPLANNER_POLL_INTERVAL")
	}

	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(config.Log.Format, config.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServer(ctx, config, log)
}

// runServer serves until ctx is done, then shuts the HTTP server, the result
// router and the worker pool down in that order.
func runServer(ctx context.Context, config *Config, log *logger.ZapLogger) error {
	g, err := buildGraph(config, log)
	if err != nil {
		return err
	}

	service := pathservice.New(g, config.Workers, serviceOptions(config, log)...)
	srv := server.New(service,
		server.WithLogger(log),
		server.WithSnapTolerance(config.SnapTolerance),
		server.WithPollInterval(config.PollInterval))

	httpServer := &http.Server{
		Addr:              config.HTTP.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", config.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return srv.Router().Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.CloseStreams()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if closeErr := service.Close(); closeErr != nil {
		log.Error("path service closed with error", zap.Error(closeErr))
	}
	return err
}

func serviceOptions(config *Config, log logger.Logger) []pathservice.Option {
	opts := []pathservice.Option{
		pathservice.WithLogger(log),
		pathservice.WithSnapTolerance(config.SnapTolerance),
	}
	if config.SimplifyEpsilon >= 0 {
		opts = append(opts, pathservice.WithSimplify(config.SimplifyEpsilon))
	}
	return opts
}
