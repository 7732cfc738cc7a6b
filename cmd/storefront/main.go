// Package main is the entrypoint for the storefront server and its
// maintenance commands.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eringen/storefront"
	"github.com/eringen/storefront/media"
	"github.com/eringen/storefront/media/objstore"
	"github.com/eringen/storefront/media/vips"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront - band-based CMS for storefront websites",
		Long: `Storefront serves pages composed of ordered bands (slideshow,
product, html, link) and the JSON API used to edit them.

Configuration is read from the environment; a .env file is loaded first
when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", storefront.EnvOr("STOREFRONT_ENV_FILE", ".env"), "dotenv file to load before reading the environment")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newOrphansCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("storefront %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := storefront.LoadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger := storefront.NewLogger(cfg.Debug)

			opts := []storefront.Option{
				storefront.WithLogger(logger),
				storefront.WithCustomRoutes(healthRoute),
			}
			if enc, err := vips.New(); err != nil {
				logger.Warn().Err(err).Msg("webp transcoding disabled, originals are kept as uploaded")
			} else {
				opts = append(opts, storefront.WithTranscoder(enc))
			}
			if cfg.S3.Bucket != "" {
				mirror, err := objstore.New(cmd.Context(), cfg.S3)
				if err != nil {
					return err
				}
				logger.Info().Str("bucket", cfg.S3.Bucket).Msg("mirroring uploads to object storage")
				opts = append(opts, storefront.WithMirror(mirror))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return storefront.New(cfg, opts...).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}

// healthRoute answers load balancer checks once the database responds.
func healthRoute(a *storefront.App) {
	a.Echo.GET("/healthz/", func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		if err := a.Store.Ping(c.Request().Context()); err != nil {
			return storefront.Failure(c, http.StatusServiceUnavailable, "database unavailable")
		}
		return storefront.Success(c, http.StatusOK, map[string]string{"version": Version})
	})
}

func newOrphansCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List uploaded files no band references",
		Long: `Walk the upload directory and list every file whose upload is not
referenced by any band or band snapshot. Image fields, links and paths in
html markup all count. Derivatives and WebP twins follow their original.

With --delete the listed files are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := storefront.LoadConfig()
			if err != nil {
				return err
			}
			return runOrphans(cmd.Context(), cfg, remove, storefront.NewLogger(cfg.Debug))
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the orphaned files")
	return cmd
}

func runOrphans(ctx context.Context, cfg storefront.SiteConfig, remove bool, logger zerolog.Logger) error {
	app := storefront.New(cfg, storefront.WithLogger(logger))
	db, err := storefront.OpenDB(app.Config.DatabasePath)
	if err != nil {
		return err
	}
	store, err := storefront.NewStore(db, logger)
	if err != nil {
		db.Close()
		return err
	}
	defer store.Close()

	refs, err := store.ReferencedImages(ctx)
	if err != nil {
		return err
	}
	pipeline := media.New(app.Config.MediaConfig(), media.WithLogger(logger))
	orphans, err := pipeline.Orphans(refs)
	if err != nil {
		return err
	}

	for _, p := range orphans {
		fmt.Println(p)
		if !remove {
			continue
		}
		if err := pipeline.Remove(p); err != nil {
			logger.Error().Err(err).Str("path", p).Msg("remove orphan")
		}
	}
	logger.Info().Int("orphans", len(orphans)).Int("referenced", len(refs)).Bool("deleted", remove).Msg("orphan sweep finished")
	return nil
}
