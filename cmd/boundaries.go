package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/fetcher"
	"github.com/sells-group/geoint-cli/internal/geoboundaries"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage the static boundary sets",
}

var (
	importLevel   string
	importSource  string
	importOutput  string
	importPostGIS bool
)

var boundariesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a geoBoundaries release",
	Long:  "Downloads (or reads) a geoBoundaries ADM1/ADM2 release for Turkey and writes it as a boundary GeoJSON file, optionally loading it into PostGIS.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := "import"
		if importPostGIS {
			mode = "postgis"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		level, err := boundary.ParseLevel(importLevel)
		if err != nil {
			return err
		}

		im := &geoboundaries.Importer{
			Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				Timeout: 5 * time.Minute,
				Retry:   retryConfig(cfg, "geoboundaries"),
			}),
			TempDir: os.TempDir(),
		}
		set, err := im.Import(ctx, level, importSource)
		if err != nil {
			return err
		}

		out := importOutput
		if out == "" {
			out = filepath.Join(cfg.Boundaries.Dir, fileFor(level))
		}
		if err := geoboundaries.WriteGeoJSON(out, set); err != nil {
			return err
		}
		zap.L().Info("boundary file written",
			zap.String("level", string(level)),
			zap.String("path", out),
			zap.Int("boundaries", set.Len()),
		)

		if importPostGIS {
			if err := storeBoundaries(ctx, set); err != nil {
				return err
			}
		}
		return nil
	},
}

var boundariesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show boundary counts per level",
	Long:  "Loads every level through the configured boundary source and prints the boundary count of each.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		src, closeSrc, err := boundarySource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		return printStatus(ctx, boundary.NewCache(src, cfg.Boundaries.LoadTimeout()), cmd.OutOrStdout())
	},
}

// printStatus loads each level and writes one row per level.
func printStatus(ctx context.Context, cache *boundary.Cache, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tBOUNDARIES\tSOURCE\tSTATUS")

	var failed int
	for _, level := range boundary.Levels() {
		set, err := cache.Get(ctx, level)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s\t-\t-\t%v\n", level, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\tok\n", level, set.Len(), set.Source)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "boundaries status: flush")
	}
	if failed > 0 {
		return eris.Errorf("boundaries status: %d level(s) failed to load", failed)
	}
	return nil
}

func storeBoundaries(ctx context.Context, set *boundary.BoundarySet) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := boundary.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := store.ReplaceBoundaries(ctx, set); err != nil {
		return err
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("postgis boundaries",
		zap.Int("provinces", counts[boundary.LevelProvince]),
		zap.Int("districts", counts[boundary.LevelDistrict]),
	)
	return nil
}

func fileFor(level boundary.Level) string {
	if level == boundary.LevelDistrict {
		return cfg.Boundaries.DistrictFile
	}
	return cfg.Boundaries.ProvinceFile
}

func init() {
	boundariesImportCmd.Flags().StringVar(&importLevel, "level", "province", "boundary level (province or district)")
	boundariesImportCmd.Flags().StringVar(&importSource, "src", "", "release zip URL, .zip, .shp or .geojson path (default: gbOpen release)")
	boundariesImportCmd.Flags().StringVarP(&importOutput, "output", "o", "", "output GeoJSON path (default: boundaries.dir/<level file>)")
	boundariesImportCmd.Flags().BoolVar(&importPostGIS, "postgis", false, "also load the set into PostGIS")

	boundariesCmd.AddCommand(boundariesImportCmd)
	boundariesCmd.AddCommand(boundariesStatusCmd)
	rootCmd.AddCommand(boundariesCmd)
}
