package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/mapview"
)

var (
	servePort int
	serveWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map layer API server",
	Long:  "Serves merged province, district and comparison layers, raw boundaries and choropleth styles over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, closeSrc, err := boundarySource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		pal, err := palette(cfg)
		if err != nil {
			return err
		}

		engine := newEngine(cfg, src)
		if serveWarm {
			if err := engine.Cache().Warm(ctx); err != nil {
				// Requests still degrade to unmerged payloads until a load succeeds.
				zap.L().Warn("boundary warm-up failed", zap.Error(err))
			}
		}

		scores := scoreClient(cfg)
		views := mapview.NewRegistry(cfg.Server.MaxViews)
		srvDeps := &server{
			ctx:     ctx,
			engine:  engine,
			scores:  scores,
			views:   views,
			palette: pal,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(srvDeps, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("boundary_source", cfg.Boundaries.Source),
			zap.String("scores", cfg.Scores.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := views.Wait(waitCtx); err != nil {
			zap.L().Warn("selection loads still running at shutdown", zap.Error(err))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", true, "load all boundary levels before accepting requests")
	rootCmd.AddCommand(serveCmd)
}
