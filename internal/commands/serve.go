package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/api"
	"github.com/fundflow-dev/fundflow/internal/config"
	"github.com/fundflow-dev/fundflow/internal/logging"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			m, ok := p.store.(migrator)
			if !ok {
				return fmt.Errorf("store driver %q does not support migrations", p.cfg.Store.Driver)
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s store\n", p.cfg.Store.Driver)
			return nil
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.close()

			if addr == "" {
				addr = p.cfg.Server.Addr
			}
			if p.cfg.Server.AuthToken == "" {
				return errors.New("server.auth_token or FUNDFLOW_AUTH_TOKEN is required")
			}
			return serve(ctx, addr, p.cfg, api.NewServer(p.ledger, p.cfg.Server.AuthToken, p.logger), p.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func serve(ctx context.Context, addr string, cfg *config.Config, srv *api.Server, logger logging.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Event(logger, "server_started", map[string]any{
			"addr":          addr,
			"store":         cfg.Store.Driver,
			"base_currency": cfg.Platform.BaseCurrency,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Event(logger, "server_stopping", nil)
	return httpServer.Shutdown(shutdownCtx)
}
