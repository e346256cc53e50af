package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchmarny/sohma/pkg/config"
	"github.com/mchmarny/sohma/pkg/score"
	"github.com/mchmarny/sohma/pkg/telemetry"
	urfave "github.com/urfave/cli/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const (
	serverMaxHeaderBytes = 20
	telemetryFlushWait   = 5 * time.Second

	hostFlagName = "host"
	portFlagName = "port"
)

func newServerCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start the scoring HTTP server",
		UsageText: `sohma server                              # listen on the configured address
   sohma server --host 0.0.0.0 --port 9000   # listen on all interfaces`,
		Action: cmdStartServer,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  hostFlagName,
				Usage: "Address on which the server will listen (overrides server.host)",
			},
			&urfave.IntFlag{
				Name:  portFlagName,
				Usage: "Port on which the server will listen (overrides server.port)",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.IsSet(hostFlagName) {
		cfg.Server.Host = cmd.String(hostFlagName)
	}
	if cmd.IsSet(portFlagName) {
		cfg.Server.Port = int(cmd.Int(portFlagName))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
	}

	return serve(ctx, cfg.Config, lis)
}

// serve runs the HTTP server on lis until ctx is done, then shuts it down
// gracefully.
func serve(ctx context.Context, cfg *config.Config, lis net.Listener) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		lis.Close()
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), telemetryFlushWait)
		defer cancel()
		if err := shutdownTelemetry(fctx); err != nil {
			slog.Error("error flushing telemetry", "error", err)
		}
	}()

	s := &http.Server{
		Handler:        makeRouter(score.NewScorer(), cfg.Server.MaxBodyBytes),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "address", lis.Addr().String(), "version", version)
		if err := s.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error shutting down server: %w", err)
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}

func makeRouter(scorer *score.Scorer, maxBodyBytes int64) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthzHandler)
	mux.HandleFunc("POST /echo", echoHandler(maxBodyBytes))
	mux.HandleFunc("POST /predict", predictHandler(scorer, maxBodyBytes))

	var h http.Handler = mux
	h = logRequests(h)
	h = withRequestID(h)

	return otelhttp.NewHandler(h, appName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
