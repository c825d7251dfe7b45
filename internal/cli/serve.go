package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/plategate-go/internal/container"
	"github.com/anime-shed/plategate-go/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var resultDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := container.NewContainer(a.cfg, resultDir)
			if err != nil {
				return err
			}

			cfg := c.Config()
			server := &http.Server{
				Addr:              cfg.ServerAddress(),
				Handler:           c.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.HTTPTimeout,
				// lookups may run up to ServeTimeout, leave room for the error response
				WriteTimeout: cfg.ServeTimeout + time.Minute,
			}
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"address": ln.Addr().String(),
				"timeout": cfg.ServeTimeout,
			}).Info("Starting HTTP server")
			return runServer(cmd.Context(), server, ln)
		},
	}

	cmd.Flags().StringVar(&resultDir, "result-dir", "", "directory receiving a result file per run")
	return cmd
}

// runServer serves on ln until ctx is cancelled, then shuts down gracefully
func runServer(ctx context.Context, server *http.Server, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Server exited")
		return nil
	})
	return g.Wait()
}
