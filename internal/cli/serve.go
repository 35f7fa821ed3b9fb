package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhomra21/opencanvas/internal/config"
	"github.com/jhomra21/opencanvas/internal/gateway"
	"github.com/jhomra21/opencanvas/internal/logging"
	"github.com/jhomra21/opencanvas/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// viewportPurgeInterval is how often stale local viewport cache entries
// are swept.
const viewportPurgeInterval = 6 * time.Hour

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenCanvas gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			if cfg.Logging.File != "" {
				fileLog, err := logging.NewFile(cfg.Logging.File, cfg.Logging.Level)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				log = fileLog
			}

			dbPath := paths.DatabasePath(cfg)
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", dbPath).Msg("database ready")

			vpCache, err := store.NewViewportCache(paths.Viewports, log)
			if err != nil {
				return fmt.Errorf("opening viewport cache: %w", err)
			}

			srv := gateway.New(cfg, gateway.NewStores(db), log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return srv.Start(ctx)
			})

			// Sweep stale local viewport cache entries in the background.
			g.Go(func() error {
				maxAge := time.Duration(cfg.Storage.ViewportCacheDays) * 24 * time.Hour
				ticker := time.NewTicker(viewportPurgeInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						if n := vpCache.Purge(maxAge); n > 0 {
							log.Info().Int("removed", n).Msg("purged stale viewport cache entries")
						}
					}
				}
			})

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, auto, custom)")

	return cmd
}
