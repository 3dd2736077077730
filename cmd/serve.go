package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcanaland/cardwatch/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the card endpoint and serve the rendered cards",
	Long: `Serve polls the card endpoint on the configured interval and serves the
rendered cards inside a page at the configured listen address. The page pulls
the card container again on every poll interval and cards flip on click.

Routes:
  GET  /         the host page
  GET  /cards    the card container only
  POST /refresh  run a poll cycle now
  GET  /healthz  poller state`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}

		// Override listen address if given
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}

		store, err := openSnapshots(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := newCardClient(cfg)
		if err != nil {
			return err
		}

		controller, err := newController(cfg, client, store)
		if err != nil {
			return err
		}

		srv := server.New(controller, server.Options{
			ContainerID: cfg.ContainerID,
			Reload:      cfg.PollInterval.Duration,
			Logger:      logger,
		}).HTTPServer(cfg.ListenAddr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return controller.Run(ctx)
		})

		g.Go(func() error {
			logger.Info("Serving cards", zap.String("addr", cfg.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "listen address, overrides listen_addr from the config")
}
